package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session は取得済みのカメラセッション
type Session struct {
	ID         string
	Stream     Stream
	Profile    Constraints
	AcquiredAt time.Time
}

// Frame は最新のライブフレームをデコードして返す
func (s *Session) Frame() (image.Image, error) {
	if s == nil || s.Stream == nil {
		return nil, ErrNoFrame
	}

	data, err := s.Stream.LatestFrame()
	if err != nil {
		return nil, err
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
	}
	return img, nil
}

// Manager は取得条件のフォールバックとプレビュー準備待ちを担う
type Manager struct {
	platform     Platform
	profiles     []Constraints
	readyTimeout time.Duration
	logger       *zap.Logger
}

// NewManager は新しいManagerを作成する
func NewManager(platform Platform, profiles []Constraints, readyTimeout time.Duration, logger *zap.Logger) *Manager {
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	if readyTimeout <= 0 {
		readyTimeout = 10 * time.Second
	}
	return &Manager{
		platform:     platform,
		profiles:     profiles,
		readyTimeout: readyTimeout,
		logger:       logger,
	}
}

// Acquire は優先順に条件を試し、最初に開始できたストリームの準備完了を待つ
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	if !m.platform.Supported(ctx) {
		return nil, newDeviceError(KindUnsupported, nil, nil)
	}

	var attempts []error
	for _, profile := range m.profiles {
		stream, err := m.open(ctx, profile)
		if err != nil {
			m.logger.Warn("取得条件での起動に失敗しました",
				zap.String("profile", profile.Name), zap.Error(err))
			attempts = append(attempts, fmt.Errorf("%s: %w", profile.Name, err))
			continue
		}

		if err := m.waitReady(ctx, stream); err != nil {
			if stopErr := stream.Stop(context.WithoutCancel(ctx)); stopErr != nil {
				m.logger.Warn("ストリームの停止に失敗しました", zap.Error(stopErr))
			}
			// 取得の取り消しはタイムアウトとして報告しない
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, newDeviceError(KindReadyTimeout, err, nil)
		}

		session := &Session{
			ID:         uuid.New().String(),
			Stream:     stream,
			Profile:    profile,
			AcquiredAt: time.Now(),
		}
		m.logger.Info("カメラセッションを取得しました",
			zap.String("session_id", session.ID),
			zap.String("profile", profile.Name),
			zap.String("device", stream.Info().Device))
		return session, nil
	}

	return nil, newDeviceError(KindAcquisitionFailed, nil, attempts)
}

func (m *Manager) open(ctx context.Context, profile Constraints) (Stream, error) {
	stream, err := m.platform.Open(ctx, profile)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(ctx); err != nil {
		return nil, err
	}
	return stream, nil
}

// waitReady は最初のフレームが届くまで readyTimeout だけ待つ
func (m *Manager) waitReady(ctx context.Context, stream Stream) error {
	timer := time.NewTimer(m.readyTimeout)
	defer timer.Stop()

	select {
	case <-stream.Ready():
		return nil
	case <-timer.C:
		return fmt.Errorf("%v以内に準備完了になりませんでした", m.readyTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release はセッションのストリームを全て停止する
func (m *Manager) Release(ctx context.Context, session *Session) error {
	if session == nil || session.Stream == nil {
		return nil
	}

	if err := session.Stream.Stop(ctx); err != nil {
		return fmt.Errorf("カメラセッション %s の解放に失敗: %w", session.ID, err)
	}

	m.logger.Info("カメラセッションを解放しました", zap.String("session_id", session.ID))
	return nil
}
