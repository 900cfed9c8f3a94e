package assistant

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	errorFragmentPrefix = "[AI error: "
	maxLineSize         = 1 << 20
)

var errStreamIdle = errors.New("AI response timed out")

// checkResp returns an error carrying the upstream body when the status is
// not 2xx.
func checkResp(resp *http.Response, service, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s %s returned %d: %s", service, path, resp.StatusCode, bytes.TrimSpace(body))
}

func newJSONRequest(ctx context.Context, url string, body any, headers map[string]string) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errStreamIdle) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func errorFragment(err error) string {
	return errorFragmentPrefix + err.Error() + "]"
}

// lineDecoder turns one response line into a fragment. done ends the stream.
type lineDecoder func(line []byte) (fragment string, done bool)

// streamLines sends the request built by newReq and feeds every non-empty
// response line to decode. The request is cancelled when the upstream sends
// no line within idle. Errors are reported through yield as one error fragment,
// except when ctx itself was cancelled.
func streamLines(
	ctx context.Context,
	client *http.Client,
	idle time.Duration,
	service, path string,
	newReq func(ctx context.Context) (*http.Request, error),
	decode lineDecoder,
	yield func(string) bool,
) {
	streamCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	watchdog := time.AfterFunc(idle, func() { cancel(errStreamIdle) })
	defer watchdog.Stop()

	fail := func(err error) {
		if ctx.Err() != nil {
			return
		}
		if cause := context.Cause(streamCtx); cause != nil && errors.Is(cause, errStreamIdle) {
			err = cause
		}
		yield(errorFragment(err))
	}

	req, err := newReq(streamCtx)
	if err != nil {
		fail(err)
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		fail(fmt.Errorf("%s %s: %w", service, path, err))
		return
	}
	defer resp.Body.Close()

	if err := checkResp(resp, service, path); err != nil {
		fail(err)
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		// the watchdog measures upstream silence only, not time spent in yield
		watchdog.Stop()
		var fragment string
		var done bool
		if line := bytes.TrimSpace(scanner.Bytes()); len(line) > 0 {
			fragment, done = decode(line)
		}
		if fragment != "" && !yield(fragment) {
			return
		}
		if done {
			return
		}
		watchdog.Reset(idle)
	}
	if err := scanner.Err(); err != nil {
		fail(err)
	}
}
