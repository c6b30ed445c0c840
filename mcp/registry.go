package mcp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/tool"
)

// DiscoveryError reports a server that could not be connected or listed.
type DiscoveryError struct {
	Server string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("mcp server %s: discovery failed: %v", e.Server, e.Err)
}

// Unwrap returns the cause.
func (e *DiscoveryError) Unwrap() error { return e.Err }

// Options configures a Registry.
type Options struct {
	// ClientName and ClientVersion are sent during the handshake.
	ClientName    string
	ClientVersion string

	// Transports builds connection candidates. Defaults to DefaultTransports.
	Transports TransportFactory

	// Retries is the number of extra connect attempts per AddServer.
	Retries int

	// RetryInterval is the initial backoff between connect attempts.
	RetryInterval time.Duration

	Logger logging.Logger
}

// ServerStatus is a snapshot of one configured server.
type ServerStatus struct {
	Name       string        `json:"name"`
	Transport  TransportKind `json:"transport"`
	State      State         `json:"state"`
	Tools      []string      `json:"tools,omitempty"`
	Error      string        `json:"error,omitempty"`
	ServerInfo ServerInfo    `json:"server_info"`
}

type serverEntry struct {
	config ServerConfig
	conn   *Connection
	state  State
	err    error
	tools  []string
}

// Registry exposes the tools of several remote servers under one prefix.
//
// Setup (AddServer, AddServers) is serialized; lookups are safe to run
// concurrently with it.
type Registry struct {
	prefix string
	opts   Options
	client *sdkmcp.Client

	setup sync.Mutex

	mu        sync.RWMutex
	servers   map[string]*serverEntry
	order     []string
	tools     map[string]*RemoteTool
	toolOrder []string
}

// NewRegistry creates an empty registry. Exposed tool names are
// "<prefix>_<server>_<tool>", or "<server>_<tool>" with an empty prefix.
func NewRegistry(prefix string, optFns ...func(o *Options)) *Registry {
	opts := Options{
		ClientName:    "reactmesh",
		ClientVersion: "1.0.0",
		Transports:    DefaultTransports,
		Retries:       2,
		RetryInterval: 200 * time.Millisecond,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    opts.ClientName,
		Version: opts.ClientVersion,
	}, nil)

	return &Registry{
		prefix:  sanitize(prefix),
		opts:    opts,
		client:  client,
		servers: make(map[string]*serverEntry),
		tools:   make(map[string]*RemoteTool),
	}
}

// Prefix returns the tag prepended to every exposed name.
func (r *Registry) Prefix() string { return r.prefix }

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func sanitize(s string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
}

// QualifiedName returns the exposed name for a server tool.
func (r *Registry) QualifiedName(serverName, toolName string) string {
	parts := make([]string, 0, 3)
	if r.prefix != "" {
		parts = append(parts, r.prefix)
	}

	return strings.Join(append(parts, sanitize(serverName), sanitize(toolName)), "_")
}

// AddServer connects to cfg and registers its tools.
//
// It is idempotent by server name: a ready server is left untouched, a
// failed or closed one is reconnected and replaces the previous connection.
// A disabled config is recorded and skipped. Failures are returned as
// *DiscoveryError and leave the registry's other servers usable.
func (r *Registry) AddServer(ctx context.Context, cfg ServerConfig) error {
	r.setup.Lock()
	defer r.setup.Unlock()

	if err := cfg.Validate(); err != nil {
		name := cfg.Name
		if name == "" {
			name = "(unnamed)"
		}

		return &DiscoveryError{Server: name, Err: err}
	}

	r.mu.RLock()
	existing := r.servers[cfg.Name]
	r.mu.RUnlock()

	if existing != nil && existing.state == StateReady && existing.conn.State() == StateReady {
		r.opts.Logger.Debug("mcp.server.exists", "server", cfg.Name)
		return nil
	}

	if existing != nil {
		r.drop(cfg.Name)
	}

	if !cfg.IsEnabled() {
		r.record(&serverEntry{config: cfg, state: StateDisabled})
		r.opts.Logger.Info("mcp.server.disabled", "server", cfg.Name)

		return nil
	}

	r.record(&serverEntry{config: cfg, state: StateConnecting})

	start := time.Now()

	conn, descriptors, err := r.connect(ctx, cfg)
	r.logConnection(cfg, time.Since(start), err)

	if err != nil {
		r.record(&serverEntry{config: cfg, state: StateFailed, err: err})
		return &DiscoveryError{Server: cfg.Name, Err: err}
	}

	r.register(cfg, conn, descriptors)

	return nil
}

// AddServers adds every config and returns the joined discovery errors.
// Servers that fail are excluded; the rest stay usable.
func (r *Registry) AddServers(ctx context.Context, cfgs []ServerConfig) error {
	var errs []error

	for _, cfg := range cfgs {
		if err := r.AddServer(ctx, cfg); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

type connectionLogger interface {
	LogConnection(server, transport string, dur time.Duration, err error)
}

func (r *Registry) logConnection(cfg ServerConfig, dur time.Duration, err error) {
	if l, ok := r.opts.Logger.(connectionLogger); ok {
		l.LogConnection(cfg.Name, string(cfg.Transport), dur, err)
		return
	}

	if err != nil {
		r.opts.Logger.Warn("mcp.server.discovery_failed", "server", cfg.Name, "error", err.Error())
		return
	}

	r.opts.Logger.Info("mcp.server.connect", "server", cfg.Name, "duration", dur)
}

func (r *Registry) connect(ctx context.Context, cfg ServerConfig) (*Connection, []Descriptor, error) {
	type result struct {
		conn        *Connection
		descriptors []Descriptor
	}

	op := func() (result, error) {
		conn, err := r.dial(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return result{}, backoff.Permanent(err)
			}

			return result{}, err
		}

		descriptors, err := conn.Discover(ctx)
		if err != nil {
			conn.fail(err)
			_ = conn.Close()

			return result{}, err
		}

		return result{conn: conn, descriptors: descriptors}, nil
	}

	eb := backoff.NewExponentialBackOff()
	if r.opts.RetryInterval > 0 {
		eb.InitialInterval = r.opts.RetryInterval
	}

	retries := r.opts.Retries
	if retries < 0 {
		retries = 0
	}

	res, err := backoff.RetryWithData(op, backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx))
	if err != nil {
		return nil, nil, err
	}

	return res.conn, res.descriptors, nil
}

// dial tries each transport candidate in order.
func (r *Registry) dial(ctx context.Context, cfg ServerConfig) (*Connection, error) {
	candidates, err := r.opts.Transports(ctx, cfg)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	if len(candidates) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("no transport for %s", cfg.Transport))
	}

	var errs []error

	for _, c := range candidates {
		conn, err := r.dialOne(ctx, cfg, c)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s transport: %w", c.Name, err))
			continue
		}

		return conn, nil
	}

	return nil, errors.Join(errs...)
}

// dialOne connects over one candidate. Streams live as long as the context
// they were opened with, so the session gets its own context. The handshake
// runs in the background and is abandoned on timeout or caller cancellation;
// the candidate's Abort hook then stops whatever it spawned, since closing a
// half-open subprocess session waits for the child to exit.
func (r *Registry) dialOne(ctx context.Context, cfg ServerConfig, c Candidate) (*Connection, error) {
	sessionCtx, cancel := context.WithCancel(context.Background())

	done := make(chan handshake, 1)

	go func() {
		s, err := r.client.Connect(sessionCtx, c.Transport, nil)
		done <- handshake{session: s, err: err}
	}()

	timer := time.NewTimer(cfg.EffectiveTimeout())
	defer timer.Stop()

	var hs handshake

	select {
	case hs = <-done:
	case <-timer.C:
		abandon(c, cancel, done)
		return nil, fmt.Errorf("handshake: no answer within %s: %w", cfg.EffectiveTimeout(), context.DeadlineExceeded)
	case <-ctx.Done():
		abandon(c, cancel, done)
		return nil, ctx.Err()
	}

	if hs.err != nil {
		cancel()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, hs.err
	}

	conn := newConnection(cfg, hs.session, serverInfo(hs.session))
	conn.cancel = func() {
		cancel()

		// The session has already waited for a graceful exit by now.
		if c.Abort != nil {
			c.Abort()
		}
	}

	return conn, nil
}

type handshake struct {
	session *sdkmcp.ClientSession
	err     error
}

// abandon gives up on a pending handshake. A session that still completes
// afterwards is closed in the background.
func abandon(c Candidate, cancel context.CancelFunc, done <-chan handshake) {
	cancel()

	if c.Abort != nil {
		c.Abort()
	}

	go func() {
		if hs := <-done; hs.session != nil {
			_ = hs.session.Close()
		}
	}()
}

func (r *Registry) record(s *serverEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.servers[s.config.Name]; !ok {
		r.order = append(r.order, s.config.Name)
	}

	r.servers[s.config.Name] = s
}

func (r *Registry) register(cfg ServerConfig, conn *Connection, descriptors []Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &serverEntry{config: cfg, conn: conn, state: StateReady}

	for _, d := range descriptors {
		name := r.QualifiedName(cfg.Name, d.Name)

		if _, dup := r.tools[name]; dup {
			r.opts.Logger.Warn("mcp.tool.duplicate", "server", cfg.Name, "tool", d.Name, "name", name)
			continue
		}

		r.tools[name] = &RemoteTool{
			name:       name,
			server:     cfg.Name,
			remoteName: d.Name,
			desc:       d.Description,
			schema:     d.InputSchema,
			conn:       conn,
		}
		r.toolOrder = append(r.toolOrder, name)
		s.tools = append(s.tools, name)
	}

	if _, ok := r.servers[cfg.Name]; !ok {
		r.order = append(r.order, cfg.Name)
	}

	r.servers[cfg.Name] = s

	r.opts.Logger.Info("mcp.server.ready", "server", cfg.Name, "tools", len(s.tools))
}

// drop closes a server's previous connection and unregisters its tools.
func (r *Registry) drop(name string) {
	r.mu.Lock()
	s := r.servers[name]

	if s != nil {
		for _, t := range s.tools {
			delete(r.tools, t)
		}

		r.toolOrder = removeAll(r.toolOrder, s.tools)
	}
	r.mu.Unlock()

	if s != nil && s.conn != nil {
		if err := s.conn.Close(); err != nil {
			r.opts.Logger.Warn("mcp.server.close_failed", "server", name, "error", err.Error())
		}
	}
}

func removeAll(list, drop []string) []string {
	if len(drop) == 0 {
		return list
	}

	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}

	out := list[:0]

	for _, v := range list {
		if !skip[v] {
			out = append(out, v)
		}
	}

	return out
}

// Resolve implements tool.Resolver.
func (r *Registry) Resolve(name string) (tool.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tool.ErrToolNotFound, name)
	}

	return t, nil
}

// Tools implements tool.Resolver.
func (r *Registry) Tools() map[string]tool.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]tool.Tool, len(r.tools))
	for name, t := range r.tools {
		out[name] = t
	}

	return out
}

// Names implements tool.Resolver, in discovery order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.toolOrder...)
}

// Connection returns the live connection of a server.
func (r *Registry) Connection(name string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.servers[name]
	if !ok || s.conn == nil {
		return nil, false
	}

	return s.conn, true
}

// Status reports every configured server in the order it was added.
func (r *Registry) Status() []ServerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ServerStatus, 0, len(r.order))

	for _, name := range r.order {
		s := r.servers[name]
		st := ServerStatus{
			Name:      name,
			Transport: s.config.Transport,
			State:     s.state,
			Tools:     append([]string(nil), s.tools...),
		}

		if s.conn != nil {
			st.ServerInfo = s.conn.ServerInfo()

			if cs := s.conn.State(); cs != StateReady {
				st.State = cs
				if err := s.conn.Err(); err != nil {
					st.Error = err.Error()
				}
			}
		}

		if s.err != nil {
			st.Error = s.err.Error()
		}

		out = append(out, st)
	}

	return out
}

// CloseAll closes every connection the registry opened, continuing past
// failures, and returns the joined close errors. Tools are unregistered.
// Calling it again is a no-op.
func (r *Registry) CloseAll() error {
	r.setup.Lock()
	defer r.setup.Unlock()

	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.servers))

	for _, name := range r.order {
		s := r.servers[name]
		if s.conn != nil {
			conns = append(conns, s.conn)
		}

		if s.state == StateReady || s.state == StateConnecting {
			s.state = StateClosed
		}

		s.tools = nil
	}

	r.tools = make(map[string]*RemoteTool)
	r.toolOrder = nil
	r.mu.Unlock()

	var errs []error

	for _, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}

		r.opts.Logger.Info("mcp.server.close", "server", c.Name())
	}

	return errors.Join(errs...)
}
