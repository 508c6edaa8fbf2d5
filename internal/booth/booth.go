// Package booth は撮影セッションの状態遷移を管理する
//
// 状態は1つのイベントループのゴルーチンが所有する。
// 利用者の操作、予約した遅延イベント、カメラ取得や合成の完了は
// すべて同じキューに積まれ、1件ずつ順に処理される。
package booth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"purikura/internal/camera"
	"purikura/internal/capture"
	"purikura/internal/filter"
	"purikura/internal/strip"
)

const releaseTimeout = 5 * time.Second

// DeviceManager はカメラセッションの取得と解放を行う
type DeviceManager interface {
	Acquire(ctx context.Context) (*camera.Session, error)
	Release(ctx context.Context, session *camera.Session) error
}

// Renderer は3枚の静止画からストリップを合成する
type Renderer interface {
	Render(ctx context.Context, stills []capture.Still) (*strip.Composite, error)
}

type event interface{}

// command は利用者の操作
type command struct {
	name  string
	apply func() error
	reply chan error
}

type (
	entryElapsed  struct{}
	countdownTick struct{ stage int }
	reviewDue     struct{}

	deviceAcquired struct {
		session *camera.Session
		err     error
	}

	compositeRendered struct {
		epoch uint64
		comp  *strip.Composite
		err   error
	}
)

// Booth は1つの撮影セッション
type Booth struct {
	config   Config
	devices  DeviceManager
	renderer Renderer
	pipeline *capture.Pipeline
	logger   *zap.Logger
	now      func() time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan event
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	workers   sync.WaitGroup
	closeErr  error

	sched *scheduler

	// ここから下はイベントループだけが触る
	machine   *fsm.FSM
	entering  bool
	acquiring bool
	filter    filter.Descriptor
	stills    []capture.Still
	capturing bool
	countdown string
	session   *camera.Session
	deviceErr error
	composite *strip.Composite
	version   uint64

	snapMu sync.RWMutex
	snap   Snapshot

	subMu      sync.Mutex
	subs       map[uint64]chan Snapshot
	nextSub    uint64
	subsClosed bool
}

// New は新しいBoothを作成し、イベントループを開始する
func New(config Config, devices DeviceManager, renderer Renderer, logger *zap.Logger) (*Booth, error) {
	if config.DefaultFilter == "" {
		config.DefaultFilter = filter.DefaultID
	}
	initial, ok := filter.Lookup(config.DefaultFilter)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, config.DefaultFilter)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Booth{
		config:   config,
		devices:  devices,
		renderer: renderer,
		pipeline: capture.NewPipeline(config.CaptureQuality, logger),
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan event, 16),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		filter:   initial,
		subs:     make(map[uint64]chan Snapshot),
	}
	b.sched = newScheduler(b.post)
	b.machine = newMachine(b.beginRender)
	b.publish()

	go b.loop()
	return b, nil
}

func (b *Booth) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.quit:
			b.shutdown()
			return
		case ev := <-b.events:
			b.handle(ev)
		}
	}
}

// post はイベントをキューに積む（終了後はfalse）
func (b *Booth) post(ev event) bool {
	select {
	case b.events <- ev:
		return true
	case <-b.quit:
		return false
	}
}

// do は操作をイベントループで実行し、結果を待つ
func (b *Booth) do(name string, apply func() error) error {
	reply := make(chan error, 1)
	if !b.post(command{name: name, apply: apply, reply: reply}) {
		return ErrClosed
	}

	select {
	case err := <-reply:
		return err
	case <-b.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

func (b *Booth) handle(ev event) {
	switch e := ev.(type) {
	case command:
		err := e.apply()
		if err != nil {
			b.logger.Debug("操作を受け付けませんでした", zap.String("command", e.name), zap.Error(err))
		}
		e.reply <- err
	case timerFired:
		if !b.sched.accept(e) {
			b.logger.Debug("取り消し済みの予約イベントを破棄しました", zap.Uint64("epoch", e.epoch))
			return
		}
		b.handle(e.event)
	case entryElapsed:
		b.onEntryElapsed()
	case countdownTick:
		b.onCountdownTick(e.stage)
	case reviewDue:
		b.onReviewDue()
	case deviceAcquired:
		b.onDeviceAcquired(e)
	case compositeRendered:
		b.onCompositeRendered(e)
	default:
		b.logger.Warn("未知のイベントです", zap.Any("event", ev))
	}
}

// Start はセッションを開始する
// Introでは入場アニメーションの後にカメラを取得し、
// 取得に失敗したAwaitingDeviceでは取得をやり直す
func (b *Booth) Start() error {
	return b.do("start", b.start)
}

func (b *Booth) start() error {
	switch {
	case b.machine.Can(eventStart) && !b.entering:
		b.entering = true
		b.sched.after(b.config.EntryDelay, entryElapsed{})
		b.publish()
		return nil
	case b.machine.Can(eventRetry) && !b.acquiring:
		b.logger.Info("カメラの取得を再試行します")
		b.beginAcquire()
		return nil
	}
	return fmt.Errorf("%w: start (%s)", ErrInvalidPhase, b.phase())
}

func (b *Booth) onEntryElapsed() {
	b.entering = false
	if err := b.fire(eventStart); err != nil {
		b.logger.Warn("カメラ待ちに進めませんでした", zap.Error(err))
		b.publish()
		return
	}
	b.beginAcquire()
}

func (b *Booth) beginAcquire() {
	b.acquiring = true
	b.deviceErr = nil
	b.publish()

	b.workers.Add(1)
	go func() {
		defer b.workers.Done()

		session, err := b.devices.Acquire(b.ctx)
		if b.post(deviceAcquired{session: session, err: err}) || session == nil {
			return
		}

		// 終了済みなら取得できたセッションをすぐ解放する
		_ = b.release(session)
	}()
}

func (b *Booth) onDeviceAcquired(e deviceAcquired) {
	b.acquiring = false
	if e.err != nil {
		b.deviceErr = e.err
		b.logger.Error("カメラの取得に失敗しました", zap.Error(e.err))
		b.publish()
		return
	}

	if err := b.fire(eventDeviceAcquired); err != nil {
		b.logger.Warn("取得したカメラを使えないため解放します", zap.Error(err))
		_ = b.release(e.session)
		b.publish()
		return
	}
	b.session = e.session
	b.logger.Info("ライブプレビューを開始しました",
		zap.String("session_id", e.session.ID),
		zap.String("profile", e.session.Profile.Name))
	b.publish()
}

// SelectFilter は以降の撮影に使うフィルターを選ぶ
func (b *Booth) SelectFilter(id string) error {
	return b.do("select_filter", func() error {
		if err := b.allow(eventSelectFilter); err != nil {
			return err
		}
		d, ok := filter.Lookup(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFilter, id)
		}
		b.filter = d
		b.publish()
		return nil
	})
}

// Shutter はカウントダウンを始め、終了時に1枚撮影する
func (b *Booth) Shutter() error {
	return b.do("shutter", b.beginCapture)
}

func (b *Booth) beginCapture() error {
	if err := b.allow(eventShutter); err != nil {
		return err
	}
	if b.capturing {
		return ErrAlreadyCapturing
	}
	if len(b.stills) >= MaxStills {
		return ErrLimitReached
	}

	b.capturing = true
	b.countdown = capture.CountdownStages[0]
	b.sched.after(b.config.CountdownInterval, countdownTick{stage: 1})
	b.publish()
	return nil
}

func (b *Booth) onCountdownTick(stage int) {
	if stage < len(capture.CountdownStages) {
		b.countdown = capture.CountdownStages[stage]
		b.sched.after(b.config.CountdownInterval, countdownTick{stage: stage + 1})
		b.publish()
		return
	}
	b.takeStill()
}

func (b *Booth) takeStill() {
	defer func() {
		b.capturing = false
		b.countdown = ""
		b.publish()
	}()

	still, err := b.pipeline.Capture(b.session, b.filter, b.now())
	if err != nil {
		if errors.Is(err, capture.ErrFrameUnavailable) {
			b.logger.Debug("ライブフレームがないため撮影をスキップしました", zap.Error(err))
		} else {
			b.logger.Warn("撮影に失敗しました", zap.Error(err))
		}
		return
	}

	b.stills = append(b.stills, still)
	b.logger.Info("撮影しました",
		zap.String("still_id", still.ID),
		zap.String("filter", still.Filter),
		zap.Int("count", len(b.stills)))

	if len(b.stills) == MaxStills {
		b.sched.after(b.config.ReviewDelay, reviewDue{})
	}
}

func (b *Booth) onReviewDue() {
	if len(b.stills) != MaxStills {
		return
	}
	// Reviewingに入ると合成を始める
	if err := b.fire(eventReviewDue); err != nil {
		b.logger.Debug("仕上がり確認に進めませんでした", zap.Error(err))
		return
	}
	b.publish()
}

func (b *Booth) beginRender() {
	stills := append([]capture.Still(nil), b.stills...)
	epoch := b.sched.epoch

	b.workers.Add(1)
	go func() {
		defer b.workers.Done()
		comp, err := b.renderer.Render(b.ctx, stills)
		b.post(compositeRendered{epoch: epoch, comp: comp, err: err})
	}()
}

func (b *Booth) onCompositeRendered(e compositeRendered) {
	if e.epoch != b.sched.epoch || b.phase() != PhaseReviewing {
		b.logger.Debug("リセット前の合成結果を破棄しました")
		return
	}
	if e.err != nil {
		b.logger.Warn("ストリップの合成に失敗しました", zap.Error(e.err))
		return
	}
	b.composite = e.comp
	b.publish()
}

// Reset は撮影済みの静止画を破棄してLiveに戻る（カメラは開いたまま）
func (b *Booth) Reset() error {
	return b.do("reset", func() error {
		if err := b.fire(eventReset); err != nil {
			return err
		}

		b.sched.cancelAll()
		b.stills = nil
		b.capturing = false
		b.countdown = ""
		b.composite = nil
		b.logger.Info("セッションをリセットしました")
		b.publish()
		return nil
	})
}

// Still はindex番目の静止画を返す
func (b *Booth) Still(index int) (capture.Still, error) {
	var out capture.Still
	err := b.do("still", func() error {
		if index < 0 || index >= len(b.stills) {
			return fmt.Errorf("%w: %d", ErrStillNotFound, index)
		}
		out = b.stills[index]
		return nil
	})
	return out, err
}

// Composite は合成済みのストリップを返す
func (b *Booth) Composite() (*strip.Composite, error) {
	var out *strip.Composite
	err := b.do("composite", func() error {
		if b.composite == nil {
			return ErrStripNotReady
		}
		out = b.composite
		return nil
	})
	return out, err
}

// Stream はライブプレビュー用のストリームを返す
func (b *Booth) Stream() (camera.Stream, error) {
	var out camera.Stream
	err := b.do("stream", func() error {
		if b.session == nil {
			return fmt.Errorf("%w: no camera session (%s)", ErrInvalidPhase, b.phase())
		}
		out = b.session.Stream
		return nil
	})
	return out, err
}

// Snapshot は現在の状態のコピーを返す
func (b *Booth) Snapshot() Snapshot {
	b.snapMu.RLock()
	defer b.snapMu.RUnlock()
	return b.snap
}

// Subscribe は状態が変わるたびにSnapshotを受け取るチャンネルを返す
// 最初に現在の状態が届く
func (b *Booth) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	b.subMu.Lock()
	defer b.subMu.Unlock()

	if b.subsClosed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	ch <- b.Snapshot()

	return ch, func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

func (b *Booth) publish() {
	b.version++
	snap := Snapshot{
		Version:    b.version,
		Phase:      b.phase(),
		Entering:   b.entering,
		Acquiring:  b.acquiring,
		Filter:     b.filter.ID,
		Capturing:  b.capturing,
		Countdown:  b.countdown,
		Stills:     append([]capture.Still{}, b.stills...),
		MaxStills:  MaxStills,
		Error:      errorInfo(b.deviceErr),
		StripReady: b.composite != nil,
		UpdatedAt:  b.now(),
		DeviceErr:  b.deviceErr,
	}
	if b.session != nil && b.session.Stream != nil {
		info := b.session.Stream.Info()
		snap.Device = &info
	}

	b.snapMu.Lock()
	b.snap = snap
	b.snapMu.Unlock()

	b.subMu.Lock()
	defer b.subMu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
			// 遅い購読者は古いものを捨てて最新を受け取る
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Close は予約を取り消してイベントループを止め、カメラを解放する
func (b *Booth) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		b.cancel()
		close(b.quit)
	})

	// イベントループは実行中の取得と合成の終了を待ってから止まる
	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.closeErr
}

func (b *Booth) shutdown() {
	b.sched.cancelAll()

	if b.session != nil {
		b.closeErr = b.release(b.session)
		b.session = nil
	}

	// 終了と同時に取得できたセッションはキューに残るので解放する
	b.workers.Wait()
	b.drain()

	b.subMu.Lock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.subsClosed = true
	b.subMu.Unlock()

	b.logger.Info("撮影セッションを終了しました")
}

// drain はキューに残ったイベントを捨てる
func (b *Booth) drain() {
	for {
		select {
		case ev := <-b.events:
			if e, ok := ev.(deviceAcquired); ok && e.session != nil {
				if err := b.release(e.session); err != nil && b.closeErr == nil {
					b.closeErr = err
				}
			}
		default:
			return
		}
	}
}

func (b *Booth) release(session *camera.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	err := b.devices.Release(ctx, session)
	if err != nil {
		b.logger.Warn("カメラセッションの解放に失敗しました", zap.Error(err))
	}
	return err
}
