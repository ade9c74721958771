package codec

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/pion/stun"

	"github.com/dep2p/go-ninat/pkg/types"
)

// CodeUnknownAttribute 服务器不理解 CHANGE-REQUEST 时返回的错误码
const CodeUnknownAttribute = 420

// STUN RFC 5389 Binding 格式，附加 RFC 5780 的 CHANGE-REQUEST 与 OTHER-ADDRESS
//
// 旧服务器只返回 RFC 3489 的 CHANGED-ADDRESS，解码时同样接受。
type STUN struct{}

var _ Codec = STUN{}

// Name 格式名称
func (STUN) Name() string { return "stun" }

// Encode 编码 Binding Request
func (STUN) Encode(req Request) ([]byte, error) {
	setters := []stun.Setter{stun.NewTransactionIDSetter(req.ID), stun.BindingRequest}
	if req.Flags != 0 {
		setters = append(setters, changeRequest(req.Flags))
	}
	m, err := stun.Build(setters...)
	if err != nil {
		return nil, fmt.Errorf("codec: build stun request: %w", err)
	}
	return m.Raw, nil
}

// Decode 解码 Binding 成功或错误响应
func (STUN) Decode(b []byte) (Response, error) {
	if !stun.IsMessage(b) {
		return Response{}, fmt.Errorf("%w: not a stun message", ErrMalformed)
	}
	m := &stun.Message{Raw: append([]byte(nil), b...)}
	if err := m.Decode(); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	resp := Response{ID: m.TransactionID}
	switch m.Type {
	case stun.BindingError:
		var ec stun.ErrorCodeAttribute
		if err := ec.GetFrom(m); err != nil {
			return Response{}, fmt.Errorf("%w: error response without code", ErrMalformed)
		}
		resp.ErrorCode = int(ec.Code)
		return resp, nil
	case stun.BindingSuccess:
	default:
		return Response{}, fmt.Errorf("%w: unexpected message type %s", ErrMalformed, m.Type)
	}

	mapped, err := mappedAddress(m)
	if err != nil {
		return Response{}, err
	}
	resp.Mapped = mapped

	if other, ok := otherAddress(m); ok {
		resp.Other = &other
	}
	return resp, nil
}

// Match 事务 ID 一致即视为回答
func (STUN) Match(req Request, resp Response) bool {
	return req.ID == resp.ID
}

// EncodeResponse 编码 Binding 响应，ErrorCode 非 0 时编码为错误响应
func (STUN) EncodeResponse(resp Response) ([]byte, error) {
	setters := []stun.Setter{stun.NewTransactionIDSetter(resp.ID)}
	if resp.ErrorCode != 0 {
		setters = append(setters, stun.BindingError, &stun.ErrorCodeAttribute{
			Code:   stun.ErrorCode(resp.ErrorCode),
			Reason: []byte("error"),
		})
	} else {
		setters = append(setters, stun.BindingSuccess, &stun.XORMappedAddress{
			IP:   resp.Mapped.Addr.AsSlice(),
			Port: int(resp.Mapped.Port),
		})
		if resp.Other != nil {
			setters = append(setters, otherAddressSetter(*resp.Other))
		}
	}
	m, err := stun.Build(setters...)
	if err != nil {
		return nil, fmt.Errorf("codec: build stun response: %w", err)
	}
	return m.Raw, nil
}

// mappedAddress 优先 XOR-MAPPED-ADDRESS，回退 MAPPED-ADDRESS
func mappedAddress(m *stun.Message) (types.Endpoint, error) {
	var xorAddr stun.XORMappedAddress
	if wellFormedAddress(m, stun.AttrXORMappedAddress) && xorAddr.GetFrom(m) == nil {
		if ep, ok := endpointFromIP(xorAddr.IP, xorAddr.Port); ok {
			return ep, nil
		}
	}
	var addr stun.MappedAddress
	if wellFormedAddress(m, stun.AttrMappedAddress) && addr.GetFrom(m) == nil {
		if ep, ok := endpointFromIP(addr.IP, addr.Port); ok {
			return ep, nil
		}
	}
	return types.Endpoint{}, fmt.Errorf("%w: no mapped address", ErrMalformed)
}

// otherAddress 优先 OTHER-ADDRESS，回退 CHANGED-ADDRESS
func otherAddress(m *stun.Message) (types.Endpoint, bool) {
	for _, t := range []stun.AttrType{stun.AttrOtherAddress, stun.AttrChangedAddress} {
		var addr stun.MappedAddress
		if !wellFormedAddress(m, t) || addr.GetFromAs(m, t) != nil {
			continue
		}
		if ep, ok := endpointFromIP(addr.IP, addr.Port); ok {
			return ep, true
		}
	}
	return types.Endpoint{}, false
}

// wellFormedAddress 地址类属性长度必须与协议族一致：IPv4 为 8 字节，IPv6 为 20 字节
//
// pion/stun 的 GetFrom 不检查长度，畸形属性会越界。
func wellFormedAddress(m *stun.Message, t stun.AttrType) bool {
	v, err := m.Get(t)
	if err != nil {
		return false
	}
	switch len(v) {
	case 8:
		return v[0] == 0 && v[1] == 0x01
	case 20:
		return v[0] == 0 && v[1] == 0x02
	default:
		return false
	}
}

func endpointFromIP(ip net.IP, port int) (types.Endpoint, bool) {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok || port <= 0 || port > 0xffff {
		return types.Endpoint{}, false
	}
	return types.NewEndpoint(addr, uint16(port)), true
}

// changeRequest CHANGE-REQUEST 属性：4 字节，末字节 0x04 换 IP，0x02 换端口
type changeRequest Flags

// AddTo 实现 stun.Setter
func (c changeRequest) AddTo(m *stun.Message) error {
	var v byte
	if Flags(c).Has(FlagChangeAddress) {
		v |= 0x04
	}
	if Flags(c).Has(FlagChangePort) {
		v |= 0x02
	}
	if v == 0 {
		return errors.New("codec: empty change request")
	}
	m.Add(stun.AttrChangeRequest, []byte{0, 0, 0, v})
	return nil
}

type otherAddressSetter types.Endpoint

// AddTo 实现 stun.Setter
func (o otherAddressSetter) AddTo(m *stun.Message) error {
	addr := stun.MappedAddress{IP: o.Addr.AsSlice(), Port: int(o.Port)}
	return addr.AddToAs(m, stun.AttrOtherAddress)
}

// ChangeRequestFlags 读取请求中的 CHANGE-REQUEST，供模拟服务端使用
func ChangeRequestFlags(b []byte) (TxID, Flags, error) {
	if !stun.IsMessage(b) {
		return TxID{}, 0, ErrMalformed
	}
	m := &stun.Message{Raw: append([]byte(nil), b...)}
	if err := m.Decode(); err != nil || m.Type != stun.BindingRequest {
		return TxID{}, 0, ErrMalformed
	}
	var f Flags
	if v, err := m.Get(stun.AttrChangeRequest); err == nil && len(v) == 4 {
		if v[3]&0x04 != 0 {
			f |= FlagChangeAddress
		}
		if v[3]&0x02 != 0 {
			f |= FlagChangePort
		}
	}
	return m.TransactionID, f, nil
}
