package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/sysmlsql/internal/progress"
	"github.com/leapstack-labs/sysmlsql/internal/stream"
	"github.com/leapstack-labs/sysmlsql/pkg/core"
	"github.com/tomnomnom/linkheader"
	"golang.org/x/sync/errgroup"
)

// Pipeline defaults.
const (
	DefaultChannelCapacity = 32
	DefaultPollInterval    = 500 * time.Millisecond
)

// PipelineOptions tunes FetchAll.
type PipelineOptions struct {
	// ChannelCapacity bounds how many pages the paginator may run ahead of
	// the decoder.
	ChannelCapacity int
	// PollInterval is how often the monitor samples the counters.
	PollInterval time.Duration
	// ReportInterval is the minimum time between two progress reports.
	ReportInterval time.Duration
}

func (o PipelineOptions) withDefaults() PipelineOptions {
	if o.ChannelCapacity < 1 {
		o.ChannelCapacity = DefaultChannelCapacity
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ReportInterval <= 0 {
		o.ReportInterval = progress.DefaultInterval
	}
	return o
}

// Result is the outcome of FetchAll.
type Result struct {
	Elements []core.Element
	// Pages counts the non-empty pages decoded.
	Pages int
	// Requests counts the pages handed to the decoder.
	Requests int
	Duration time.Duration
}

// nextLink returns the URL of the "next" relation, or "" on the last page.
func nextLink(resp *http.Response) (string, error) {
	headers := resp.Header.Values("Link")
	if len(headers) == 0 {
		return "", nil
	}
	next := linkheader.ParseMultiple(headers).FilterByRel("next")
	if len(next) == 0 {
		return "", nil
	}
	target, err := url.Parse(next[0].URL)
	if err != nil || next[0].URL == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedLink, next[0].URL)
	}
	if resp.Request != nil && resp.Request.URL != nil {
		target = resp.Request.URL.ResolveReference(target)
	}
	return target.String(), nil
}

// FetchAll follows the pagination links starting at path and returns the
// elements of all pages in arrival order. An empty page ends the traversal.
//
// A paginator and a decoder run concurrently, joined by a bounded channel of
// responses. The paginator stops when there is no next link or the decoder
// has stopped; the decoder stops on the first empty page. A monitor logs
// progress until both are done.
func (c *Client) FetchAll(ctx context.Context, path string, opts PipelineOptions) (*Result, error) {
	opts = opts.withDefaults()
	start := time.Now()
	c.logger.Info("fetching started")

	var (
		elementsSeen atomic.Int64
		pagesSeen    atomic.Int64
		requests     atomic.Int64
	)
	pages := make(chan *http.Response, opts.ChannelCapacity)
	stopped := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(pages)
		next := c.URL(path).String()
		for next != "" {
			select {
			case <-stopped:
				return nil
			default:
			}

			resp, err := c.Get(gctx, next)
			if err != nil {
				return err
			}
			if next, err = nextLink(resp); err != nil {
				_ = resp.Body.Close()
				return err
			}

			select {
			case pages <- resp:
				requests.Add(1)
			case <-stopped:
				c.logger.Debug("decoder stopped, shutting down paginator")
				_ = resp.Body.Close()
				return nil
			case <-gctx.Done():
				_ = resp.Body.Close()
				return gctx.Err()
			}
		}
		return nil
	})

	var elements []core.Element
	g.Go(func() error {
		defer func() {
			close(stopped)
			// release whatever the paginator still queued
			for resp := range pages {
				_ = resp.Body.Close()
			}
		}()

		for resp := range pages {
			page, err := stream.DecodeAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to decode page %d: %w", pagesSeen.Load()+1, err)
			}
			if len(page) == 0 {
				c.logger.Debug("detected empty page, terminating decoder")
				return nil
			}
			elements = append(elements, page...)
			pagesSeen.Add(1)
			elementsSeen.Store(int64(len(elements)))
		}
		return nil
	})

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		rep := progress.New(c.logger, "element", opts.ReportInterval).WithVerb("fetched")
		ticker := time.NewTicker(opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				rep.Tick(int(elementsSeen.Load()))
			}
		}
	}()

	err := g.Wait()
	stopMonitor()
	<-monitorDone
	if err != nil {
		return nil, err
	}

	res := &Result{
		Elements: elements,
		Pages:    int(pagesSeen.Load()),
		Requests: int(requests.Load()),
		Duration: time.Since(start),
	}
	c.logger.Info("fetch finished",
		"elements", len(res.Elements),
		"pages", res.Pages,
		"took", res.Duration,
	)
	return res, nil
}
