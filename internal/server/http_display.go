package server

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mfarzz/jobai/internal/utils"
)

// displayServerInfo prints the startup banner to stdout
func (s *Server) displayServerInfo() {
	s.writeServerInfo(os.Stdout)
}

func (s *Server) writeServerInfo(out io.Writer) {
	fmt.Fprintln(out, "Available endpoints:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  GET\t/health\tHealth check (?models=true probes AI models)")
	fmt.Fprintln(tw, "  GET\t/stats\tServer statistics")
	for _, rt := range s.apiRoutes(nil) {
		method, path, _ := strings.Cut(rt.pattern, " ")
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", method, path, rt.summary)
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "API endpoints require the %s header\n", s.UserHeader)

	if n := s.apiKeyCount(); n > 0 {
		fmt.Fprintf(out, "API authentication: ENABLED (%d keys configured)\n", n)
	} else {
		fmt.Fprintln(out, "API authentication: DISABLED (no API keys configured)")
	}

	if s.MaxRequestSize > 0 {
		fmt.Fprintf(out, "Request size limit: %s\n", utils.FormatFileSize(s.MaxRequestSize))
	} else {
		fmt.Fprintln(out, "Request size limit: DISABLED")
	}

	if s.RateLimit == nil || !s.RateLimit.Enabled {
		fmt.Fprintln(out, "Rate limiting: DISABLED")
		return
	}
	var scopes []string
	if s.RateLimit.ByAPIKey {
		scopes = append(scopes, "api key")
	}
	if s.RateLimit.ByIP {
		scopes = append(scopes, "ip")
	}
	fmt.Fprintf(out, "Rate limiting: ENABLED (%d requests/min, burst %d, per %s)\n",
		s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity, strings.Join(scopes, " and "))
}
