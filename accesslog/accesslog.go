// Package accesslog implements AccessLogService, the component that
// records one line per accepted request/response pair (spec §2 data
// flow, "AccessLogService records the pair").
package accesslog

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/lactoserv/lactoserv/component"
)

// Record is one request/response pair to log.
type Record struct {
	Time      time.Time
	RemoteIP  string
	Method    string
	URI       string
	Host      string
	Path      string
	Referer   string
	UserAgent string
	Status    int
	Latency   time.Duration
	RxBytes   int64
	TxBytes   int64
}

// DefaultFormat mirrors the field vocabulary of the teacher's request
// logger gas: time, remote_ip, method, uri, status, latency, rx_bytes,
// tx_bytes.
const DefaultFormat = `{"time":"${time_rfc3339}","remote_ip":"${remote_ip}",` +
	`"method":"${method}","uri":"${uri}","host":"${host}","status":${status},` +
	`"latency":${latency},"rx_bytes":${rx_bytes},"tx_bytes":${tx_bytes}}` + "\n"

// Config configures an AccessLogService.
type Config struct {
	Format string
	Output io.Writer
}

// Service is an AccessLogService component: a Record sink formatted
// through a fasttemplate-compiled format string, written to a single
// output sink under a mutex (spec §5, one task-local sink per record).
type Service struct {
	component.Lifecycle

	template   *fasttemplate.Template
	output     io.Writer
	mu         sync.Mutex
	bufferPool sync.Pool
}

// New compiles cfg into a Service attached to ctx. Init/Start still need
// to run, matching every other managed component, before Write may be
// called (webapp.Startable).
func New(ctx *component.Context, cfg Config) *Service {
	format := cfg.Format
	if format == "" {
		format = DefaultFormat
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	s := &Service{
		template: fasttemplate.New(format, "${", "}"),
		output:   output,
		bufferPool: sync.Pool{
			New: func() any { return new(bytes.Buffer) },
		},
	}
	s.Attach(ctx)
	return s
}

// Init satisfies the component lifecycle; the template and output sink
// are already assembled in New, so Init performs no further work.
func (s *Service) Init(ctx context.Context, isReload bool) error {
	return s.Lifecycle.Init(ctx, isReload, func(context.Context, bool) error { return nil })
}

// Start satisfies the component lifecycle.
func (s *Service) Start(isReload bool) error {
	return s.Lifecycle.Start(isReload, func(bool) error { return nil })
}

// Stop satisfies the component lifecycle. If the output sink is closable
// and isn't one of the standard streams, it is closed to flush any
// buffered data.
func (s *Service) Stop(willReload bool) error {
	return s.Lifecycle.Stop(willReload, func(bool) error {
		if s.output == os.Stdout || s.output == os.Stderr {
			return nil
		}
		if c, ok := s.output.(io.Closer); ok {
			return c.Close()
		}
		return nil
	})
}

// Write formats rec and writes it to the configured output.
func (s *Service) Write(rec Record) error {
	buf := s.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer s.bufferPool.Put(buf)

	_, err := s.template.ExecuteFunc(buf, func(w io.Writer, tag string) (int, error) {
		switch tag {
		case "time_rfc3339":
			return io.WriteString(w, rec.Time.Format(time.RFC3339))
		case "remote_ip":
			host, _, err := net.SplitHostPort(rec.RemoteIP)
			if err != nil {
				host = rec.RemoteIP
			}
			return io.WriteString(w, host)
		case "method":
			return io.WriteString(w, rec.Method)
		case "uri":
			return io.WriteString(w, rec.URI)
		case "host":
			return io.WriteString(w, rec.Host)
		case "path":
			return io.WriteString(w, rec.Path)
		case "referer":
			return io.WriteString(w, rec.Referer)
		case "user_agent":
			return io.WriteString(w, rec.UserAgent)
		case "status":
			return io.WriteString(w, strconv.Itoa(rec.Status))
		case "latency":
			return io.WriteString(w, strconv.FormatInt(rec.Latency.Microseconds(), 10))
		case "latency_human":
			return io.WriteString(w, rec.Latency.String())
		case "rx_bytes":
			return io.WriteString(w, strconv.FormatInt(rec.RxBytes, 10))
		case "tx_bytes":
			return io.WriteString(w, strconv.FormatInt(rec.TxBytes, 10))
		default:
			return 0, nil
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.output.Write(buf.Bytes())
	return err
}
