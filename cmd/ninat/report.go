package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dep2p/go-ninat/config"
	"github.com/dep2p/go-ninat/pkg/types"
)

func writeReport(w io.Writer, format string, res *types.Result) error {
	if format == config.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return writeText(w, res)
}

// writeText 人类可读的报告
func writeText(w io.Writer, res *types.Result) error {
	var err error
	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	if res.External != nil {
		p("Remote Address: %s\n", res.External.Addr)
	}
	p("NAT Type:\n")
	p("  Nintendo Switch : %s\n", res.NATType.Nintendo())
	p("  Sony PlayStation: %s\n", res.NATType.Sony())
	p("  Microsoft Xbox  : %s\n", res.NATType.Microsoft())
	p("Status          : %s\n", res.Status)
	if res.Reason != "" {
		p("Reason          : %s\n", res.Reason)
	}
	p("Mapping         : %s\n", res.Mapping)
	p("Filtering       : %s\n", res.Filtering)
	if res.PortAllocation != types.PortAllocationUnknown {
		p("Port Allocation : %s\n", res.PortAllocation)
	}
	if res.Router != nil && res.Router.ExternalIP != "" {
		p("Router          : %s reports %s via %s\n", res.Router.Gateway, res.Router.ExternalIP, res.Router.Method)
	}
	for _, note := range res.Notes {
		p("Note: %s\n", note)
	}
	return err
}
