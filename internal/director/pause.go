package director

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PauseSource — причина паузы. Пауза действует, пока активен хотя бы один источник.
type PauseSource int

const (
	PauseGameOver PauseSource = iota
	PauseLevelUp
	PauseMenu
	PauseHitstop
)

var pauseNames = map[PauseSource]string{
	PauseGameOver: "game_over",
	PauseLevelUp:  "level_up",
	PauseMenu:     "menu",
	PauseHitstop:  "hitstop",
}

// ErrUnknownPauseSource возвращается при разборе неизвестного источника
var ErrUnknownPauseSource = errors.New("unknown pause source")

func (p PauseSource) String() string {
	if name, ok := pauseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("pause(%d)", int(p))
}

// MarshalText реализует encoding.TextMarshaler
func (p PauseSource) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePauseSource разбирает источник паузы из строки
func ParsePauseSource(s string) (PauseSource, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range pauseNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPauseSource, s)
}

// Pause включает источник паузы. Все ожидания режиссёра замирают.
func (d *Director) Pause(source PauseSource) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pauses[source] {
		return
	}
	d.pauses[source] = true
	d.notifyPauseLocked()
	d.logger.Debug("⏸️ Пауза: %s", source)
}

// Resume снимает источник паузы. Ожидания продолжаются с оставшимся временем.
func (d *Director) Resume(source PauseSource) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.pauses[source] {
		return
	}
	delete(d.pauses, source)
	d.notifyPauseLocked()
	d.logger.Debug("▶️ Снята пауза: %s", source)
}

// ClearPauses снимает все источники паузы
func (d *Director) ClearPauses() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pauses) == 0 {
		return
	}
	d.pauses = make(map[PauseSource]bool)
	d.notifyPauseLocked()
}

// Paused сообщает, стоит ли режиссёр на паузе
func (d *Director) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pauses) > 0
}

func (d *Director) pauseSourcesLocked() []PauseSource {
	if len(d.pauses) == 0 {
		return nil
	}
	out := make([]PauseSource, 0, len(d.pauses))
	for p := range d.pauses {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// notifyPauseLocked будит все ожидания, чтобы они перечитали состояние паузы
func (d *Director) notifyPauseLocked() {
	close(d.pauseChanged)
	d.pauseChanged = make(chan struct{})
}

// wait ждёт dur с учётом пауз. Возвращает false, если ctx отменён.
// Нулевая длительность всё равно ждёт снятия паузы.
func (d *Director) wait(ctx context.Context, dur time.Duration) bool {
	remaining := dur
	for {
		if ctx.Err() != nil {
			return false
		}

		d.mu.Lock()
		paused := len(d.pauses) > 0
		changed := d.pauseChanged
		d.mu.Unlock()

		if paused {
			select {
			case <-changed:
				continue
			case <-ctx.Done():
				return false
			}
		}

		if remaining <= 0 {
			return true
		}

		started := time.Now()
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
			return true
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-changed:
			timer.Stop()
			remaining -= time.Since(started)
		}
	}
}
