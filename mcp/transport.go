package mcp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// terminateGrace is how long a closing subprocess may take to exit after its
// stdin is closed before it is signalled.
const terminateGrace = 2 * time.Second

// Candidate is one way to reach a server. Candidates are tried in order.
type Candidate struct {
	Name      string
	Transport sdkmcp.Transport

	// Abort, when set, releases what Transport started, e.g. by killing a
	// spawned process. It runs when a handshake is abandoned and after the
	// connection is closed.
	Abort func()
}

// TransportFactory builds connection candidates for a server config.
type TransportFactory func(ctx context.Context, cfg ServerConfig) ([]Candidate, error)

// DefaultTransports builds a CommandTransport for subprocess servers and an
// SSE transport with a streamable HTTP fallback for stream servers.
func DefaultTransports(_ context.Context, cfg ServerConfig) ([]Candidate, error) {
	switch cfg.Transport {
	case TransportSubprocess:
		// The process must outlive the connect context, so it is bound to
		// its own context that only Abort cancels.
		procCtx, kill := context.WithCancel(context.Background())

		cmd := exec.CommandContext(procCtx, cfg.Command, cfg.Args...) // #nosec G204 -- command comes from operator config
		cmd.Dir = cfg.Dir
		cmd.Stderr = os.Stderr

		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}

		return []Candidate{{
			Name:      "subprocess",
			Transport: &sdkmcp.CommandTransport{Command: cmd, TerminateDuration: terminateGrace},
			Abort:     kill,
		}}, nil

	case TransportStream:
		client := httpClient(cfg.Headers)

		return []Candidate{
			{Name: "sse", Transport: &sdkmcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: client}},
			{Name: "streamable", Transport: &sdkmcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: client}},
		}, nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// httpClient has no global timeout; the event stream is long-lived and
// requests are bounded by their contexts.
func httpClient(headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return &http.Client{}
	}

	return &http.Client{Transport: &headerRoundTripper{headers: headers, next: http.DefaultTransport}}
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		cloned.Header.Set(k, v)
	}

	return h.next.RoundTrip(cloned)
}
