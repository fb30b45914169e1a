package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/penelope/internal/observability"
	"github.com/harun/penelope/internal/tracing"
	"github.com/harun/penelope/pkg/agent"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	transcriptExt = ".jsonl"
	idAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength      = 12
	maxLineSize   = 4 * 1024 * 1024
)

// Entry is one line of a transcript file.
type Entry struct {
	SessionKey string             `json:"sessionKey"`
	Turn       agent.AgentMessage `json:"turn"`
}

// Info describes a stored transcript.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	Turns        int       `json:"turns"`
}

// Store persists conversation transcripts as one JSONL file per session
type Store struct {
	dir        string
	writeLocks map[string]*sync.Mutex
	locksMu    sync.Mutex
}

// DefaultDir returns ~/.penelope/sessions.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".penelope", "sessions"), nil
}

// New creates a Store rooted at dir, creating it if needed. An empty dir selects DefaultDir.
func New(dir string) (*Store, error) {
	observability.EnsureRegistered()

	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	s := &Store{
		dir:        dir,
		writeLocks: make(map[string]*sync.Mutex),
	}
	log.Debug().Str("dir", dir).Msg("Session store initialized")
	s.updateStoredMetric()
	return s, nil
}

// NewID returns a fresh path-safe session key.
func NewID() (string, error) {
	return gonanoid.Generate(idAlphabet, idLength)
}

// Dir returns the directory holding the transcripts.
func (s *Store) Dir() string {
	return s.dir
}

// ValidateKey rejects keys that could escape the sessions directory.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("session key cannot be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("session key cannot contain '..'")
	}
	if strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("session key cannot contain path separators")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("session key cannot contain null bytes")
	}
	return nil
}

// validRole accepts the two conversation roles. Content may be empty: a model can answer
// with nothing.
func validRole(role string) bool {
	return role == agent.RoleUser || role == agent.RoleAssistant
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+transcriptExt)
}

func (s *Store) writeLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	if lock, ok := s.writeLocks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.writeLocks[key] = lock
	return lock
}

func (s *Store) updateStoredMetric() {
	infos, err := s.List()
	if err != nil {
		return
	}
	observability.SetStoredSessions(len(infos))
}

func (s *Store) begin(ctx context.Context, op, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span, zerolog.Logger) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionKey(ctx, key)
	attrs = append(attrs, attribute.String("session_key", key))
	ctx, span := tracing.StartSpan(ctx, "penelope.session", op, attrs...)
	return ctx, span, tracing.LoggerFromContext(ctx, log.Logger)
}

// Append writes turns to the end of the session's transcript, creating it on first use.
// Turns with an empty role or content are rejected.
func (s *Store) Append(ctx context.Context, key string, turns ...agent.AgentMessage) error {
	_, span, logger := s.begin(ctx, "session.append", key, attribute.Int("turns", len(turns)))
	defer span.End()
	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	if err := ValidateKey(key); err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	var buf strings.Builder
	for _, turn := range turns {
		if !validRole(turn.Role) {
			return fmt.Errorf("invalid turn role %q", turn.Role)
		}
		if turn.Timestamp.IsZero() {
			turn.Timestamp = time.Now()
		}
		data, err := json.Marshal(Entry{SessionKey: key, Turn: turn})
		if err != nil {
			tracing.RecordError(span, err)
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	lock := s.writeLock(key)
	lock.Lock()
	defer lock.Unlock()

	_, statErr := os.Stat(s.path(key))
	created := errors.Is(statErr, fs.ErrNotExist)

	file, err := os.OpenFile(s.path(key), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(buf.String()); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to write turns: %w", err)
	}
	if err := file.Sync(); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if created {
		s.updateStoredMetric()
		logger.Info().Msg("Session created")
	}
	logger.Debug().Int("turns", len(turns)).Msg("Turns appended")
	return nil
}

// Load returns the session's turns in order. A missing session loads as empty; corrupt
// lines are skipped.
func (s *Store) Load(ctx context.Context, key string) ([]agent.AgentMessage, error) {
	_, span, logger := s.begin(ctx, "session.load", key)
	defer span.End()
	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	if err := ValidateKey(key); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	file, err := os.Open(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug().Msg("Session does not exist")
		return []agent.AgentMessage{}, nil
	}
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	turns := []agent.AgentMessage{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			logger.Warn().Int("line", lineNum).Err(err).Msg("Failed to parse line, skipping")
			continue
		}
		if !validRole(entry.Turn.Role) {
			logger.Warn().Int("line", lineNum).Msg("Invalid entry, skipping")
			continue
		}
		turns = append(turns, entry.Turn)
	}
	if err := scanner.Err(); err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	span.SetAttributes(attribute.Int("turns", len(turns)))
	logger.Debug().Int("turns", len(turns)).Msg("Session loaded")
	return turns, nil
}

// Delete removes a session's transcript. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, span, logger := s.begin(ctx, "session.delete", key)
	defer span.End()

	if err := ValidateKey(key); err != nil {
		tracing.RecordError(span, err)
		return err
	}

	lock := s.writeLock(key)
	lock.Lock()
	err := os.Remove(s.path(key))
	lock.Unlock()

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to delete session file: %w", err)
	}

	s.locksMu.Lock()
	delete(s.writeLocks, key)
	s.locksMu.Unlock()

	s.updateStoredMetric()
	logger.Info().Msg("Session deleted")
	return nil
}

// List describes every stored session, most recently modified first.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	infos := []Info{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, transcriptExt) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Key:          strings.TrimSuffix(name, transcriptExt),
			Size:         fi.Size(),
			LastModified: fi.ModTime(),
			Turns:        countLines(filepath.Join(s.dir, name)),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].LastModified.Equal(infos[j].LastModified) {
			return infos[i].Key < infos[j].Key
		}
		return infos[i].LastModified.After(infos[j].LastModified)
	})
	return infos, nil
}

// Prune deletes sessions not modified within maxAge and returns the removed keys.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) ([]string, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive")
	}
	infos, err := s.List()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed []string
	for _, info := range infos {
		if info.LastModified.After(cutoff) {
			continue
		}
		if err := s.Delete(ctx, info.Key); err != nil {
			return removed, err
		}
		removed = append(removed, info.Key)
	}

	if len(removed) > 0 {
		log.Info().Int("removed", len(removed)).Dur("max_age", maxAge).Msg("Pruned old sessions")
	}
	return removed, nil
}

func countLines(path string) int {
	file, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	return count
}
