package observerip

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RawReading maps vendor field names to their unconverted values.
type RawReading map[string]string

// Source produces one RawReading per poll cycle. A cycle with nothing usable
// returns an error wrapping ErrNoData.
type Source interface {
	Fetch(ctx context.Context) (RawReading, error)
}

// DirectSource scrapes the live data page and stamps the sample with the
// fetch time, rounded to the second.
type DirectSource struct {
	Client *DeviceClient
	now    func() time.Time
}

// NewDirectSource reads live data through client.
func NewDirectSource(client *DeviceClient, now func() time.Time) *DirectSource {
	if now == nil {
		now = time.Now
	}
	return &DirectSource{Client: client, now: now}
}

func (s *DirectSource) Fetch(ctx context.Context) (RawReading, error) {
	data := s.Client.LiveData(ctx)
	if len(data) == 0 {
		return nil, ErrNoData
	}
	data["epoch"] = strconv.FormatInt(s.now().Round(time.Second).Unix(), 10)
	return RawReading(data), nil
}

// FileSource reads the transfer file written by the intermediary that
// receives the device's Weather Underground uploads.
type FileSource struct {
	Path    string
	Policy  RetryPolicy
	Metrics *Metrics
	logger  *zap.SugaredLogger
}

// NewFileSource reads path under policy.
func NewFileSource(path string, policy RetryPolicy, logger *zap.SugaredLogger) *FileSource {
	return &FileSource{Path: path, Policy: policy, logger: logger}
}

// Fetch reads the whole file. A missing file or malformed line fails the
// attempt; attempts are retried under the policy.
func (s *FileSource) Fetch(ctx context.Context) (RawReading, error) {
	var data RawReading

	err := s.Policy.do(ctx, s.Policy.RetryWait, func(attempt int) error {
		d, err := ReadTransferFile(s.Path)
		s.Metrics.observeAttempt("file", err)
		if err != nil {
			return err
		}
		data = d
		return nil
	}, func(attempt int, err error) {
		s.logger.Errorf("data retrieval failed attempt %d of %d: %v", attempt, s.Policy.tries(), err)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Errorf("data retrieval failed after %d tries", s.Policy.tries())
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	if len(data) == 0 {
		return nil, ErrNoData
	}
	return data, nil
}

// ReadTransferFile parses path as "name = value" lines, splitting each at
// its first '='. Blank lines are skipped; any other line without '=' is a
// *TransferFileError.
func ReadTransferFile(path string) (RawReading, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &TransferFileError{Path: path, Err: err}
	}
	return parseTransfer(path, b)
}

func parseTransfer(path string, b []byte) (RawReading, error) {
	data := make(RawReading)

	sc := bufio.NewScanner(bytes.NewReader(b))
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, &TransferFileError{Path: path, Line: n, Err: errors.New("missing '='")}
		}
		data[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, &TransferFileError{Path: path, Err: err}
	}
	return data, nil
}

// LookupDeviceHost returns the address the intermediary recorded on the
// "observerip=" line of the transfer file, or "" when there is none.
func LookupDeviceHost(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &TransferFileError{Path: path, Err: err}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "observerip=") {
			continue
		}
		_, value, _ := strings.Cut(line, "=")
		return strings.TrimSpace(value), nil
	}
	if err := sc.Err(); err != nil {
		return "", &TransferFileError{Path: path, Err: err}
	}
	return "", nil
}
