// Package sim содержит безголовую стычку: без игрового клиента она
// убивает противников и наносит урон игроку, чтобы режиссёр волн
// крутился бесконечно.
package sim

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Pressure строит кривую боевого давления на основе шума Перлина.
// Значение колеблется вокруг 1 с амплитудой Amplitude.
type Pressure struct {
	noise     *perlin.Perlin
	amplitude float64
	frequency float64
}

// NewPressure создаёт кривую давления с указанным сидом
func NewPressure(seed int64, amplitude, frequency float64) *Pressure {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Pressure{
		noise:     perlin.NewPerlin(alpha, beta, n, seed),
		amplitude: amplitude,
		frequency: frequency,
	}
}

// At возвращает множитель давления в момент t (секунды с начала стычки).
// Результат не бывает меньше 0.
func (p *Pressure) At(t float64) float64 {
	// Шум Перлина в целых точках равен 0, поэтому сдвигаем аргумент
	v := p.noise.Noise1D(t*p.frequency + 0.5)
	return math.Max(0, 1+p.amplitude*v)
}
