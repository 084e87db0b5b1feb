package director

import (
	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/vec"
	"github.com/annel0/horde-waves/internal/wave"
)

// PlayerProvider даёт точку отсчёта для спавна и уровень для масштабирования
type PlayerProvider interface {
	Position() vec.Vec3
	Level() int
}

// PlayerHealth лечит игрока в начале Break-волны
type PlayerHealth interface {
	Heal(amount int)
}

// RunStats получает итоги волн и убийств
type RunStats interface {
	RegisterWaveCleared()
	RegisterEnemyDefeated()
}

// XPSink получает опыт за убитых противников
type XPSink interface {
	GainXP(amount int)
}

// Presenter получает уведомление о начале волны.
// Вызывается из горутины последовательности и не должен блокироваться.
type Presenter interface {
	WaveStarted(def wave.Definition, waveNumber int)
}

// ClearPresenter — необязательное расширение Presenter, уведомление о зачистке волны
type ClearPresenter interface {
	WaveCleared(def wave.Definition, waveNumber int)
}

// DefeatPresenter — необязательное расширение Presenter, уведомление о засчитанном убийстве
type DefeatPresenter interface {
	EnemyDefeated(variant enemy.Variant, waveNumber int)
}

// PresenterFunc позволяет использовать функцию как Presenter
type PresenterFunc func(def wave.Definition, waveNumber int)

func (f PresenterFunc) WaveStarted(def wave.Definition, waveNumber int) { f(def, waveNumber) }
