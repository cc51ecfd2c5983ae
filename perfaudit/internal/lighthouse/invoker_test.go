package lighthouse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser/browsertest"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/report"
)

const sampleLHR = `{
  "categories": {
    "performance": {"score": 0.42},
    "seo": {"score": 0.9}
  },
  "audits": {
    "first-contentful-paint": {"numericValue": 1200.5},
    "largest-contentful-paint": {"numericValue": 2500},
    "total-blocking-time": {"numericValue": 310},
    "cumulative-layout-shift": {"numericValue": 0.05}
  }
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest() Request {
	return Request{
		URL:                 "https://example.com/",
		Port:                9333,
		RunID:               "run-1",
		ContentReady:        browser.CSS("main"),
		ContentReadyTimeout: 50 * time.Millisecond,
	}.WithDefaults()
}

func staticRunner(rep *Report, err error) (RunnerFunc, *[]Input) {
	var calls []Input
	return func(_ context.Context, in Input) (*Report, error) {
		calls = append(calls, in)
		return rep, err
	}, &calls
}

func TestNavigate_OK(t *testing.T) {
	page := browsertest.NewPage()
	iv := NewInvoker(Config{Logger: quietLogger()})

	if err := iv.Navigate(context.Background(), page, testRequest()); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if got := page.Navigated(); len(got) != 1 || got[0] != "https://example.com/" {
		t.Fatalf("navigated: %v", got)
	}
}

func TestNavigate_Failures(t *testing.T) {
	tests := []struct {
		name  string
		nav   browser.Navigation
		err   error
		delay time.Duration
	}{
		{"dns", browser.Navigation{}, errors.New("net::ERR_NAME_NOT_RESOLVED"), 0},
		{"empty 404", browser.Navigation{Status: 404}, nil, 0},
		{"timeout", browser.Navigation{Status: 200, ContentLength: 1}, nil, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.NewPage().SetNavigation(tt.nav, tt.err).SetNavigationDelay(tt.delay)
			req := testRequest()
			req.NavigationTimeout = 20 * time.Millisecond

			err := NewInvoker(Config{Logger: quietLogger()}).Navigate(context.Background(), page, req)
			if !errors.Is(err, ErrNavigation) {
				t.Fatalf("got %v, want ErrNavigation", err)
			}
		})
	}
}

func TestNavigate_ErrorPageWithContent(t *testing.T) {
	page := browsertest.NewPage().SetNavigation(browser.Navigation{Status: 503, ContentLength: 120}, nil)
	if err := NewInvoker(Config{Logger: quietLogger()}).Navigate(context.Background(), page, testRequest()); err != nil {
		t.Fatalf("error page with content should load: %v", err)
	}
}

func TestRun_PassesInputAndPersists(t *testing.T) {
	page := browsertest.NewPage()
	page.Add(browser.Locator{Selector: "main"}, browsertest.Visible())

	runner, calls := staticRunner(&Report{JSON: []byte(sampleLHR), HTML: []byte("<html/>")}, nil)
	var got []report.Artifact
	sink := report.NewCallback(func(_ context.Context, a report.Artifact) error {
		got = append(got, a)
		return nil
	})
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	iv := NewInvoker(Config{Runner: runner, Sink: sink, Logger: quietLogger(), Now: func() time.Time { return now }})

	req := testRequest()
	req.SkipAudits = []string{"is-on-https"}
	req.Host = "chrome.internal"
	out, err := iv.Run(context.Background(), page, req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ContentReady != "main" {
		t.Errorf("content ready: got %q", out.ContentReady)
	}
	if len(*calls) != 1 {
		t.Fatalf("runner calls: %d", len(*calls))
	}
	in := (*calls)[0]
	if in.Port != 9333 || in.Host != "chrome.internal" || in.URL != req.URL || in.Name != "lighthouse-run-1" || in.SkipAudits[0] != "is-on-https" {
		t.Errorf("input: %+v", in)
	}
	if len(got) != 1 || got[0].Name != "lighthouse-run-1" || !got[0].CreatedAt.Equal(now) {
		t.Fatalf("artefacts: %+v", got)
	}
}

func TestRun_ContentReadyFallback(t *testing.T) {
	runner, calls := staticRunner(&Report{JSON: []byte(sampleLHR)}, nil)
	iv := NewInvoker(Config{Runner: runner, Logger: quietLogger()})

	out, err := iv.Run(context.Background(), browsertest.NewPage(), testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ContentReady != "" {
		t.Errorf("content ready: got %q", out.ContentReady)
	}
	if len(*calls) != 1 {
		t.Fatal("audit should proceed after content-ready timeout")
	}
}

func TestRun_TolerantRunnerError(t *testing.T) {
	errCLI := errors.New("exit status 1")
	runner, _ := staticRunner(nil, errCLI)
	iv := NewInvoker(Config{Runner: runner, Logger: quietLogger()})

	out, err := iv.Run(context.Background(), browsertest.NewPage(), testRequest())
	if err != nil {
		t.Fatalf("tolerant policy returned %v", err)
	}
	if out.Report == nil || len(out.Report.JSON) != 0 {
		t.Fatalf("report: %+v", out.Report)
	}
	if !errors.Is(out.RunnerErr, errCLI) {
		t.Fatalf("runner err: %v", out.RunnerErr)
	}
}

func TestRun_StrictRunnerError(t *testing.T) {
	runner, _ := staticRunner(nil, errors.New("exit status 1"))
	iv := NewInvoker(Config{Runner: runner, Logger: quietLogger()})

	req := testRequest()
	req.Policy = PolicyStrict
	if _, err := iv.Run(context.Background(), browsertest.NewPage(), req); !errors.Is(err, ErrAuditExecution) {
		t.Fatalf("got %v, want ErrAuditExecution", err)
	}
}

func TestRun_Thresholds(t *testing.T) {
	runner, _ := staticRunner(&Report{JSON: []byte(sampleLHR)}, nil)
	iv := NewInvoker(Config{Runner: runner, Logger: quietLogger()})

	req := testRequest()
	req.Thresholds = map[string]float64{"performance": 50, "seo": 80}

	out, err := iv.Run(context.Background(), browsertest.NewPage(), req)
	if err != nil {
		t.Fatalf("tolerant: %v", err)
	}
	if len(out.Violations) != 1 || out.Violations[0].Category != "performance" {
		t.Fatalf("violations: %+v", out.Violations)
	}

	req.Policy = PolicyStrict
	_, err = iv.Run(context.Background(), browsertest.NewPage(), req)
	var terr *ThresholdError
	if !errors.As(err, &terr) || !errors.Is(err, ErrAuditExecution) {
		t.Fatalf("strict: got %v", err)
	}
}

func TestRun_PersistFailureDoesNotFail(t *testing.T) {
	errDisk := errors.New("disk full")
	runner, _ := staticRunner(&Report{JSON: []byte(sampleLHR)}, nil)
	sink := report.NewCallback(func(context.Context, report.Artifact) error { return errDisk })
	iv := NewInvoker(Config{Runner: runner, Sink: sink, Logger: quietLogger()})

	out, err := iv.Run(context.Background(), browsertest.NewPage(), testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(out.PersistErr, errDisk) {
		t.Fatalf("persist err: %v", out.PersistErr)
	}
}

func TestRun_DeadlineDuringAuditTolerant(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, _ Input) (*Report, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	iv := NewInvoker(Config{Runner: runner, Logger: quietLogger()})

	req := testRequest()
	req.ContentReady = []browser.Locator{}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := iv.Run(ctx, browsertest.NewPage(), req)
	if !errors.Is(err, ErrAuditExecution) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want ErrAuditExecution wrapping DeadlineExceeded", err)
	}
}

func TestRun_DeadlineKeepsRunnerError(t *testing.T) {
	errKilled := errors.New("signal: killed")
	runner := RunnerFunc(func(ctx context.Context, _ Input) (*Report, error) {
		<-ctx.Done()
		return &Report{}, errKilled
	})
	iv := NewInvoker(Config{Runner: runner, Logger: quietLogger()})

	req := testRequest()
	req.ContentReady = []browser.Locator{}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := iv.Run(ctx, browsertest.NewPage(), req)
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, errKilled) {
		t.Fatalf("got %v", err)
	}
}

func TestRun_CancelledBeforeAudit(t *testing.T) {
	runner, calls := staticRunner(&Report{JSON: []byte(sampleLHR)}, nil)
	iv := NewInvoker(Config{Runner: runner, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := iv.Run(ctx, browsertest.NewPage(), testRequest()); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatal("collaborator invoked after cancellation")
	}
}
