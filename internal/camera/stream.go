package camera

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ffmpegStream はffmpegプロセスを1本保持するStream実装
type ffmpegStream struct {
	info     StreamInfo
	capturer *FFmpegCapturer
	logger   *zap.Logger

	status Status
	failed atomic.Bool // forwardFramesから立てるためmuとは別に持つ
	mu     sync.RWMutex

	// 制御用
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// 内部チャンネル
	internalFrameChan chan []byte
	internalErrorChan chan error

	// 最新フレーム保持用
	latestFrame []byte
	latestMutex sync.RWMutex
	ready       chan struct{}
	readyOnce   sync.Once

	// プレビュー購読者
	subscribers map[int]chan []byte
	nextSubID   int
	subMu       sync.Mutex
}

func newFFmpegStream(info StreamInfo, capturer *FFmpegCapturer, logger *zap.Logger) *ffmpegStream {
	return &ffmpegStream{
		info:              info,
		capturer:          capturer,
		logger:            logger.With(zap.String("stream_id", info.ID)),
		status:            StatusInactive,
		internalFrameChan: make(chan []byte, 10),
		internalErrorChan: make(chan error, 5),
		ready:             make(chan struct{}),
		subscribers:       make(map[int]chan []byte),
	}
}

// Start はテストキャプチャでデバイスを確認してから配信を開始する
func (s *ffmpegStream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusActive {
		return nil // 既に開始済み
	}

	if err := s.capturer.TestCapture(ctx); err != nil {
		s.status = StatusError
		return fmt.Errorf("テストキャプチャに失敗: %w", err)
	}

	// プロセスの寿命はリクエストではなくストリームに紐付ける
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.capturer.StartStream(streamCtx, s.internalFrameChan, s.internalErrorChan)
	}()
	go s.forwardFrames(streamCtx)

	s.status = StatusActive
	s.logger.Info("ストリームを開始しました",
		zap.String("source", string(s.info.Source)),
		zap.String("device", s.info.Device),
		zap.String("profile", s.info.Profile))
	return nil
}

// Stop はffmpegプロセスを終了させる
func (s *ffmpegStream) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		s.status = StatusInactive
		return nil // 既に停止済み
	}

	s.cancel()
	s.wg.Wait()

	s.subMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subMu.Unlock()

	s.status = StatusInactive
	s.logger.Info("ストリームを停止しました")
	return nil
}

func (s *ffmpegStream) Ready() <-chan struct{} {
	return s.ready
}

// LatestFrame は最新フレームのコピーを返す
func (s *ffmpegStream) LatestFrame() ([]byte, error) {
	s.latestMutex.RLock()
	defer s.latestMutex.RUnlock()

	if s.latestFrame == nil {
		return nil, ErrNoFrame
	}

	frame := make([]byte, len(s.latestFrame))
	copy(frame, s.latestFrame)
	return frame, nil
}

// Subscribe はプレビュー用にフレームを受け取るチャンネルを登録する
func (s *ffmpegStream) Subscribe() (<-chan []byte, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan []byte, 2)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if c, ok := s.subscribers[id]; ok {
				close(c)
				delete(s.subscribers, id)
			}
		})
	}
}

func (s *ffmpegStream) Info() StreamInfo {
	return s.info
}

func (s *ffmpegStream) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == StatusActive && s.failed.Load() {
		return StatusError
	}
	return s.status
}

// forwardFrames はキャプチャからのフレームを保持し、購読者へ配る
func (s *ffmpegStream) forwardFrames(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case frame := <-s.internalFrameChan:
			s.latestMutex.Lock()
			s.latestFrame = frame
			s.latestMutex.Unlock()
			s.readyOnce.Do(func() { close(s.ready) })
			s.broadcast(frame)

		case err := <-s.internalErrorChan:
			s.logger.Warn("ストリームでエラーが発生しました", zap.Error(err))
			s.failed.Store(true)
		}
	}
}

// broadcast は詰まっている購読者の古いフレームを捨てて最新を渡す
func (s *ffmpegStream) broadcast(frame []byte) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- frame:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}
