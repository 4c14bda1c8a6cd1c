package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// RequestLog defines the JSON structure for a log entry.
type RequestLog struct {
	Timestamp  time.Time           `json:"timestamp"`
	Method     string              `json:"method"`
	URL        string              `json:"url"`
	Headers    map[string][]string `json:"headers"`
	RemoteAddr string              `json:"remote_addr"`
	Body       string              `json:"body"`
}

// RequestLogger implements asynchronous, buffered logging with rotation and periodic flush.
type RequestLogger struct {
	fileTemplate  string        // template for log file name e.g. "/var/log/chatbot/requests-%s.jsonl"
	maxSize       int64         // maximum size in bytes before rotation
	maxFiles      int           // maximum number of rotated files to keep
	flushInterval time.Duration // flush the buffer every flushInterval if not empty

	mu          sync.Mutex
	currentFile string // current active file name (populated from fileTemplate)
	file        *os.File
	writer      *bufio.Writer
	currentSize int64

	logCh  chan RequestLog
	doneCh chan struct{}
	wg     sync.WaitGroup
	closed bool

	logger *utils.Logger
}

// newFileName generates a new log filename by applying the current timestamp
// to the fileTemplate. The timestamp format used is "20060102150405".
func (logger *RequestLogger) newFileName() string {
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf(logger.fileTemplate, timestamp)
}

// openFile opens (or creates) the active log file using the file template and prepares the buffered writer.
// It also ensures that the directory for the log file exists.
func (logger *RequestLogger) openFile() error {
	logger.currentFile = logger.newFileName()
	// Ensure the directory exists
	dir := filepath.Dir(logger.currentFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(logger.currentFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	logger.currentSize = fi.Size()
	logger.file = file
	logger.writer = bufio.NewWriter(file)
	return nil
}

// rotateIfNeeded checks if adding n bytes would exceed the max file size,
// and if so rotates the file by closing the current file and opening a new one.
func (logger *RequestLogger) rotateIfNeeded(n int) error {
	logger.mu.Lock()
	defer logger.mu.Unlock()

	// if we haven't reached the max size yet, nothing to do
	if logger.currentSize+int64(n) < logger.maxSize {
		return nil
	}

	// flush and close current file
	if err := logger.writer.Flush(); err != nil {
		return err
	}
	if err := logger.file.Close(); err != nil {
		return err
	}

	// Open a new file (which will have a new timestamp)
	if err := logger.openFile(); err != nil {
		return err
	}
	return logger.cleanupOldFiles()
}

// cleanupOldFiles removes the oldest rotated files if more than maxFiles exist.
func (logger *RequestLogger) cleanupOldFiles() error {
	// Build the glob pattern by replacing "%s" with "*"
	pattern := fmt.Sprintf(logger.fileTemplate, "*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	// Sort files by modification time.
	sort.Slice(matches, func(i, j int) bool {
		fi, err1 := os.Stat(matches[i])
		fj, err2 := os.Stat(matches[j])
		if err1 != nil || err2 != nil {
			return false
		}
		return fi.ModTime().Before(fj.ModTime())
	})

	// Delete oldest files if there are more than maxFiles.
	excess := len(matches) - logger.maxFiles
	for i := 0; i < excess; i++ {
		_ = os.Remove(matches[i])
	}
	return nil
}

// run is the goroutine that listens for log entries and writes them to disk.
// It also uses a ticker to periodically flush the buffer.
func (logger *RequestLogger) run() {
	defer logger.wg.Done()
	ticker := time.NewTicker(logger.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-logger.logCh:
			logger.writeEntry(entry)
		case <-ticker.C:
			// Flush periodically.
			logger.mu.Lock()
			_ = logger.writer.Flush()
			logger.mu.Unlock()
		case <-logger.doneCh:
			// Drain remaining log entries.
			for {
				select {
				case entry := <-logger.logCh:
					logger.writeEntry(entry)
				default:
					logger.mu.Lock()
					_ = logger.writer.Flush()
					_ = logger.file.Close()
					logger.mu.Unlock()
					return
				}
			}
		}
	}
}

// writeEntry serializes a RequestLog to JSON and writes it, rotating if needed.
func (logger *RequestLogger) writeEntry(entry RequestLog) {
	data, err := json.Marshal(entry)
	if err != nil {
		// If marshaling fails, skip the log entry.
		return
	}
	line := string(data) + "\n"
	n := len(line)
	// Check and perform rotation if needed.
	if err := logger.rotateIfNeeded(n); err != nil {
		logger.logger.Error("Failed to rotate request log", "file", logger.currentFile, "error", err)
	}
	logger.mu.Lock()
	_, _ = logger.writer.WriteString(line)
	logger.currentSize += int64(n)
	logger.mu.Unlock()
}

// maxLoggedBody caps how much of a request body is captured
const maxLoggedBody = 64 * 1024

// skippedHeaders are never written to the log
var skippedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
}

// redactedFields are JSON body fields replaced with a placeholder.
// Matching ignores case, as encoding/json does when decoding into structs.
var redactedFields = []string{"password", "apiKey"}

const redactedValue = "[REDACTED]"

// LogRequest queues a request for logging. If the queue is full, the log entry is dropped.
// The body is restored so the handler can still read it.
func (logger *RequestLogger) LogRequest(r *http.Request) {
	headers := make(map[string][]string, len(r.Header))
	for k, v := range r.Header {
		if skippedHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		headers[k] = v
	}

	var bodyStr string
	if r.Body != nil && r.Body != http.NoBody {
		bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
		if err == nil {
			bodyStr = redactBody(bodyBytes[:min(len(bodyBytes), maxLoggedBody)])
		}
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(bodyBytes), r.Body))
	}

	entry := RequestLog{
		Timestamp:  time.Now().UTC(),
		Method:     r.Method,
		URL:        r.URL.String(),
		Headers:    headers,
		RemoteAddr: r.RemoteAddr,
		Body:       bodyStr,
	}
	select {
	case logger.logCh <- entry:
	default:
		// Queue full; dropping log entry.
	}
}

// redactBody masks secret fields of a JSON object body. Bodies that are not
// a JSON object are logged as-is unless they mention a secret field, in which
// case they are dropped.
func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		folded := strings.ToLower(strings.ToUpper(string(body)))
		for _, field := range redactedFields {
			if strings.Contains(folded, strings.ToLower(field)) {
				return redactedValue
			}
		}
		return string(body)
	}

	masked := false
	placeholder, _ := json.Marshal(redactedValue)
	for key := range obj {
		if isRedactedField(key) {
			obj[key] = placeholder
			masked = true
		}
	}
	if !masked {
		return string(body)
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return redactedValue
	}
	return string(out)
}

func isRedactedField(key string) bool {
	for _, field := range redactedFields {
		if strings.EqualFold(key, field) {
			return true
		}
	}
	return false
}

// Shutdown signals the logger to flush its buffer and close the file.
// Call Shutdown() from your application's graceful shutdown handler.
func (logger *RequestLogger) Shutdown() {
	logger.mu.Lock()
	if logger.closed {
		logger.mu.Unlock()
		return
	}
	logger.closed = true
	logger.mu.Unlock()

	close(logger.doneCh)
	logger.wg.Wait()
}

// NewLogger creates a new RequestLogger.
// bufferSize determines how many log entries can be queued before writes block.
// flushInterval defines how often the logger should flush its buffer.
func NewLogger(fileTemplate string, maxSize int64, maxFiles, bufferSize int, flushInterval time.Duration) (*RequestLogger, error) {
	logger := &RequestLogger{
		fileTemplate:  fileTemplate,
		maxSize:       maxSize,
		maxFiles:      maxFiles,
		flushInterval: flushInterval,
		logCh:         make(chan RequestLog, bufferSize),
		doneCh:        make(chan struct{}),
		logger:        utils.NewLogger("request-logger"),
	}

	if err := logger.openFile(); err != nil {
		return nil, err
	}

	logger.wg.Add(1)
	go logger.run()

	return logger, nil
}
