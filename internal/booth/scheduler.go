package booth

import "time"

// timerFired は予約したイベントの発火
type timerFired struct {
	id    uint64
	epoch uint64
	event event
}

// scheduler は取り消し可能な遅延イベントを管理する
// イベントループのゴルーチンからのみ操作する
type scheduler struct {
	post   func(event) bool
	epoch  uint64
	nextID uint64
	timers map[uint64]*time.Timer
}

func newScheduler(post func(event) bool) *scheduler {
	return &scheduler{
		post:   post,
		timers: make(map[uint64]*time.Timer),
	}
}

// after はd経過後にevをイベントキューに積む
func (s *scheduler) after(d time.Duration, ev event) uint64 {
	s.nextID++
	id, epoch := s.nextID, s.epoch
	s.timers[id] = time.AfterFunc(d, func() {
		s.post(timerFired{id: id, epoch: epoch, event: ev})
	})
	return id
}

// accept は発火したイベントがまだ有効かを判定する
// 取り消し済みや世代が古いものはfalse
func (s *scheduler) accept(t timerFired) bool {
	if t.epoch != s.epoch {
		return false
	}
	if _, ok := s.timers[t.id]; !ok {
		return false
	}
	delete(s.timers, t.id)
	return true
}

// cancelAll は予約を全て取り消し、世代を進める
func (s *scheduler) cancelAll() {
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.epoch++
}

// pending は未発火の予約数を返す
func (s *scheduler) pending() int {
	return len(s.timers)
}
