package db

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/glovestage/internal/frame"
	"github.com/banshee-data/glovestage/internal/mapper"
	"github.com/banshee-data/glovestage/internal/monitoring"
	"github.com/banshee-data/glovestage/internal/timeutil"
)

const (
	DefaultRecorderBuffer = 1024
	DefaultBatchSize      = 128
	DefaultFlushInterval  = 250 * time.Millisecond
)

// RecorderOptions tune the session writer.
type RecorderOptions struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
	Clock         timeutil.Clock
}

// RecorderStats counts frames through the writer.
type RecorderStats struct {
	Queued  uint64 `json:"queued"`
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

type recordedFrame struct {
	seq        uint64
	receivedAt time.Time
	payload    []byte
	fired      []string
}

// Recorder writes applied frames to a session off the render goroutine.
// Record never blocks: when the queue is full the frame is dropped and
// counted.
type Recorder struct {
	db      *DB
	session string
	opts    RecorderOptions
	queue   chan recordedFrame

	queued  atomic.Uint64
	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewRecorder returns a writer for session. Run must be started to drain it.
func NewRecorder(db *DB, session string, opts RecorderOptions) *Recorder {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultRecorderBuffer
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Recorder{
		db:      db,
		session: session,
		opts:    opts,
		queue:   make(chan recordedFrame, opts.Buffer),
	}
}

// Session returns the ID frames are written under.
func (r *Recorder) Session() string { return r.session }

// Record queues one applied frame. Its signature matches stage.FrameHook.
func (r *Recorder) Record(f frame.SensorFrame, tr mapper.Triggers) {
	rf := recordedFrame{seq: f.Seq, receivedAt: f.ReceivedAt, payload: f.Bytes(), fired: tr.Names()}
	select {
	case r.queue <- rf:
		r.queued.Add(1)
	default:
		r.dropped.Add(1)
	}
}

// Stats returns the writer counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Queued:  r.queued.Load(),
		Written: r.written.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
	}
}

// Run drains the queue in batches until ctx is cancelled, then writes what
// is still queued and returns.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := r.opts.Clock.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]recordedFrame, 0, r.opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.write(batch); err != nil {
			r.failed.Add(uint64(len(batch)))
			monitoring.Opsf("[db] failed to write %d frames to session %s: %v", len(batch), r.session, err)
		} else {
			r.written.Add(uint64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rf := <-r.queue:
					batch = append(batch, rf)
					if len(batch) >= r.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return nil
				}
			}
		case rf := <-r.queue:
			batch = append(batch, rf)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C():
			flush()
		}
	}
}

func (r *Recorder) write(batch []recordedFrame) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	frames, err := tx.Prepare(`INSERT OR REPLACE INTO frames (session_id, seq, received_unix_nanos, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare frames: %w", err)
	}
	defer frames.Close()
	triggers, err := tx.Prepare(`INSERT INTO triggers (session_id, seq, name) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare triggers: %w", err)
	}
	defer triggers.Close()

	for _, rf := range batch {
		if _, err := frames.Exec(r.session, rf.seq, rf.receivedAt.UnixNano(), rf.payload); err != nil {
			return fmt.Errorf("insert frame %d: %w", rf.seq, err)
		}
		for _, name := range rf.fired {
			if _, err := triggers.Exec(r.session, rf.seq, name); err != nil {
				return fmt.Errorf("insert trigger %s/%d: %w", name, rf.seq, err)
			}
		}
	}
	return tx.Commit()
}
