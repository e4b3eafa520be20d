package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/zenith/internal/model"
	"github.com/dukerupert/zenith/internal/store"
)

// ErrDisabled is returned when S3 or the passphrase are not configured.
var ErrDisabled = errors.New("backups not configured")

// archiveVersion is bumped when the Archive layout changes.
const archiveVersion = 1

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config holds S3-compatible storage configuration and the archive passphrase.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string
}

func (c Config) enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != "" && c.Passphrase != ""
}

// Sources are the stores an export reads from.
type Sources struct {
	Profiles  *store.ProfileStore
	Tasks     *store.TaskStore
	Missions  *store.MissionStore
	Goals     *store.GoalStore
	Timetable *store.TimetableStore
}

// Archive is the decrypted content of one backup.
type Archive struct {
	Version    int                    `json:"version"`
	UserID     string                 `json:"user_id"`
	ExportedAt time.Time              `json:"exported_at"`
	Profile    *model.Profile         `json:"profile"`
	Tasks      []model.Task           `json:"tasks"`
	Missions   []model.Mission        `json:"missions"`
	Goals      []model.Goal           `json:"goals"`
	Timetable  []model.TimetableEvent `json:"timetable"`
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Manager exports encrypted per-user archives to S3-compatible storage.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	status Status

	src     Sources
	backups *store.BackupStore
	client  s3Client
	logger  *slog.Logger
}

// NewManager creates a new backup manager. It is disabled unless cfg names
// a bucket, credentials and a passphrase.
func NewManager(cfg Config, src Sources, backups *store.BackupStore, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		src:     src,
		backups: backups,
		logger:  logger,
		status:  Status{State: StateDisabled},
	}
	if cfg.enabled() {
		m.client = newS3Client(cfg)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether exports can run.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// List returns the user's most recent backups.
func (m *Manager) List(uid string) ([]model.Backup, error) {
	return m.backups.List(uid, 50)
}

// Export snapshots uid's data, encrypts it and uploads it. The returned
// record is completed; failures are recorded on the row as well.
func (m *Manager) Export(ctx context.Context, uid string) (*model.Backup, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrDisabled
	}

	m.setStatus(Status{State: StateRunning})

	now := time.Now().UTC()
	s3Key := fmt.Sprintf("%s/backup-%s.json.enc", uid, now.Format("2006-01-02T150405.000Z"))

	record, err := m.backups.Create(uid, s3Key)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	fail := func(err error) (*model.Backup, error) {
		if uerr := m.backups.UpdateStatus(record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("mark backup failed", "backup_id", record.ID, "error", uerr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}

	archive, err := m.collect(ctx, uid)
	if err != nil {
		return fail(fmt.Errorf("collect: %w", err))
	}
	archive.ExportedAt = now

	plaintext, err := json.Marshal(archive)
	if err != nil {
		return fail(fmt.Errorf("marshal archive: %w", err))
	}

	sealed, err := Encrypt(plaintext, passphrase)
	if err != nil {
		return fail(fmt.Errorf("encrypt: %w", err))
	}

	if err := m.backups.UpdateStatus(record.ID, model.BackupStatusUploading, ""); err != nil {
		return fail(err)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(s3Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return fail(fmt.Errorf("upload to s3: %w", err))
	}

	size := int64(len(sealed))
	if err := m.backups.UpdateCompleted(record.ID, size); err != nil {
		return fail(err)
	}

	done := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &done})
	m.logger.Info("backup exported", "user_id", uid, "backup_id", record.ID, "bytes", size)

	record.Status = model.BackupStatusCompleted
	record.SizeBytes = size
	record.CompletedAt = &done
	return record, nil
}

func (m *Manager) collect(ctx context.Context, uid string) (*Archive, error) {
	a := &Archive{Version: archiveVersion, UserID: uid}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a.Profile, err = m.src.Profiles.Get(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		a.Tasks, err = m.src.Tasks.ListByUser(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		a.Missions, err = m.src.Missions.ListByUser(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		a.Timetable, err = m.src.Timetable.ListByUser(ctx, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, mission := range a.Missions {
		goals, err := m.src.Goals.ListByMission(ctx, uid, mission.ID)
		if err != nil {
			return nil, err
		}
		a.Goals = append(a.Goals, goals...)
	}
	return a, nil
}

// Download fetches and decrypts a backup belonging to uid. It returns
// store.ErrNotFound when uid has no such backup.
func (m *Manager) Download(ctx context.Context, id int64, uid string) (*Archive, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrDisabled
	}

	record, err := m.backups.GetByID(id, uid)
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	if record == nil || record.Status != model.BackupStatusCompleted {
		return nil, store.ErrNotFound
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}

	plaintext, err := Decrypt(sealed, passphrase)
	if err != nil {
		return nil, err
	}

	var a Archive
	if err := json.Unmarshal(plaintext, &a); err != nil {
		return nil, fmt.Errorf("unmarshal archive: %w", err)
	}
	return &a, nil
}
