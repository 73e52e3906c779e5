package video_batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-batch/async"
)

const chunkSize = 8192

var errHeaderTimeout = errors.New("timed out waiting for response")

// ErrFileTooSmall is the cause of an attempt whose complete response was no larger than the minimum valid size.
var ErrFileTooSmall = errors.New("file too small")

type fileTooSmallError struct {
	minSize int64
}

func (e *fileTooSmallError) Error() string {
	return fmt.Sprintf("file too small (<%d bytes), may be invalid", e.minSize)
}

func (e *fileTooSmallError) Is(target error) bool {
	return target == ErrFileTooSmall
}

// ProgressFunc receives the bytes written so far and the expected total (-1 if unknown) for the current attempt.
type ProgressFunc func(downloaded int64, expected int64)

// Fetcher streams media URLs to local files, validating the result by size and retrying failed attempts.
type Fetcher struct {
	config   Config
	client   HTTPClient
	storage  Storage
	progress ProgressFunc
}

func NewFetcher(config Config, client HTTPClient, storage Storage) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if storage == nil {
		storage = LocalStorage{}
	}
	return &Fetcher{
		config:  config,
		client:  client,
		storage: storage,
	}
}

// WithProgressCallback sets the function to call as bytes are written.
func (f *Fetcher) WithProgressCallback(fn ProgressFunc) *Fetcher {
	f.progress = fn
	return f
}

// Fetch downloads url to destination, overwriting it, making up to Config.FetchAttempts attempts. An attempt fails if
// the request fails, the status is not 2xx, writing fails, or the written file is not larger than
// Config.MinValidSize. Failed requests are followed by Config.RetryDelay before the next attempt. If every attempt
// fails, the returned *FetchError describes the last one and no undersized file is left at destination.
func (f *Fetcher) Fetch(ctx context.Context, url string, destination string) error {
	fetchLog := Logger(ctx).Sugar().Named("fetch").With("url", url)
	var attempts *multierror.Error
	for attempt := 1; attempt <= f.config.FetchAttempts; attempt++ {
		log := fetchLog.With("attempt", attempt)
		err := f.attempt(ctx, log, url, destination)
		if err == nil {
			log.Debugw("fetch complete", "path", destination)
			return nil
		}
		log.Debugw("fetch attempt failed", "error", err)
		if errors.Is(err, ErrFileTooSmall) {
			attempts = multierror.Append(attempts, err)
			continue
		}
		attempts = multierror.Append(attempts, &attemptError{attempt: attempt, err: err})
		if ctx.Err() != nil {
			break
		}
		if attempt < f.config.FetchAttempts {
			if err := sleep(ctx, f.config.RetryDelay); err != nil {
				break
			}
		}
	}
	f.cleanup(fetchLog, destination)
	return newFetchError(attempts)
}

func (f *Fetcher) attempt(ctx context.Context, log *zap.SugaredLogger, url string, destination string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.FetchUserAgent)

	resp, err := f.do(req, cancel)
	if err != nil {
		if errors.Is(err, errHeaderTimeout) {
			return err
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body := &readerContext{ctx: ctx, r: resp.Body, timeout: f.config.FetchTimeout, cancel: cancel}
	if err := f.save(destination, body, resp.ContentLength); err != nil {
		_ = f.storage.Remove(destination)
		return err
	}

	size, ok, err := f.storage.Size(destination)
	if err != nil {
		return fmt.Errorf("failed to check file size: %w", err)
	}
	if !ok || size <= f.config.MinValidSize {
		if err := f.storage.Remove(destination); err != nil {
			log.Warnw("failed to remove undersized file", "path", destination, "error", err)
		}
		return &fileTooSmallError{minSize: f.config.MinValidSize}
	}
	return nil
}

type doResult struct {
	resp *http.Response
	err  error
}

// do sends req, giving up with errHeaderTimeout if no response arrives within Config.FetchTimeout. A response that
// arrives in time is always returned, however close to the deadline.
func (f *Fetcher) do(req *http.Request, cancel context.CancelFunc) (*http.Response, error) {
	if f.config.FetchTimeout <= 0 {
		return f.client.Do(req)
	}
	done := async.Run(func() doResult {
		resp, err := f.client.Do(req)
		return doResult{resp: resp, err: err}
	})
	timer := time.NewTimer(f.config.FetchTimeout)
	defer timer.Stop()
	select {
	case result := <-done:
		return result.resp, result.err
	case <-timer.C:
		cancel()
		go func() {
			if result := <-done; result.resp != nil {
				result.resp.Body.Close()
			}
		}()
		return nil, errHeaderTimeout
	}
}

func (f *Fetcher) save(destination string, stream io.Reader, expected int64) error {
	file, err := f.storage.Create(destination)
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}
	counter := &progressCounter{expected: expected, callback: f.progress}
	_, err = io.CopyBuffer(io.MultiWriter(file, counter), stream, make([]byte, chunkSize))
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to save stream: %w", err)
	}
	return nil
}

// cleanup removes whatever a failed fetch left at destination, unless it's somehow a valid file.
func (f *Fetcher) cleanup(log *zap.SugaredLogger, destination string) {
	if ok, err := isComplete(f.storage, destination, f.config.MinValidSize); err == nil && !ok {
		if err := f.storage.Remove(destination); err != nil {
			log.Warnw("failed to remove invalid file", "path", destination, "error", err)
		}
	}
}

// progressCounter ignores the data but counts the bytes, so it must be the last writer in an io.MultiWriter to avoid
// counting failed writes.
type progressCounter struct {
	downloaded int64
	expected   int64
	callback   ProgressFunc
}

func (c *progressCounter) Write(p []byte) (int, error) {
	c.downloaded += int64(len(p))
	if c.callback != nil {
		c.callback(c.downloaded, c.expected)
	}
	return len(p), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
