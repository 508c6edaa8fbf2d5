package booth

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// フェーズ遷移のイベント名
const (
	eventStart          = "start"
	eventRetry          = "retry"
	eventDeviceAcquired = "device_acquired"
	eventSelectFilter   = "select_filter"
	eventShutter        = "shutter"
	eventReviewDue      = "review_due"
	eventReset          = "reset"
)

// newMachine はフェーズの状態機械を作る
// 自己遷移のイベントはそのフェーズで受け付ける操作を表す
func newMachine(onReviewing func()) *fsm.FSM {
	intro := string(PhaseIntro)
	awaiting := string(PhaseAwaitingDevice)
	live := string(PhaseLive)
	reviewing := string(PhaseReviewing)

	return fsm.NewFSM(
		intro,
		fsm.Events{
			{Name: eventStart, Src: []string{intro}, Dst: awaiting},
			{Name: eventRetry, Src: []string{awaiting}, Dst: awaiting},
			{Name: eventDeviceAcquired, Src: []string{awaiting}, Dst: live},
			{Name: eventSelectFilter, Src: []string{live}, Dst: live},
			{Name: eventShutter, Src: []string{live}, Dst: live},
			{Name: eventReviewDue, Src: []string{live}, Dst: reviewing},
			{Name: eventReset, Src: []string{live, reviewing}, Dst: live},
		},
		fsm.Callbacks{
			"enter_" + reviewing: func(_ context.Context, _ *fsm.Event) {
				onReviewing()
			},
		},
	)
}

func (b *Booth) phase() Phase {
	return Phase(b.machine.Current())
}

// allow は現在のフェーズでイベントを受け付けるか確かめる
func (b *Booth) allow(event string) error {
	if b.machine.Can(event) {
		return nil
	}
	return fmt.Errorf("%w: %s (%s)", ErrInvalidPhase, event, b.phase())
}

// fire はイベントでフェーズを遷移させる（同じフェーズへの遷移は成功扱い）
func (b *Booth) fire(event string) error {
	err := b.machine.Event(context.Background(), event)
	if err == nil {
		return nil
	}

	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		return fmt.Errorf("%w: %s (%s)", ErrInvalidPhase, invalid.Event, invalid.State)
	}
	return fmt.Errorf("フェーズ遷移 %s に失敗: %w", event, err)
}
