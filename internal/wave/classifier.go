package wave

import "math/rand"

// Cadence задаёт периодичность специальных волн. 0 — тип отключён.
type Cadence struct {
	BreakEvery    int `yaml:"break_every" json:"break_every"`
	MiniBossEvery int `yaml:"miniboss_every" json:"miniboss_every"`
	BossEvery     int `yaml:"boss_every" json:"boss_every"`
	PowerEvery    int `yaml:"power_every" json:"power_every"`
	FastEvery     int `yaml:"fast_every" json:"fast_every"`
	RangedEvery   int `yaml:"ranged_every" json:"ranged_every"`
	PanicEvery    int `yaml:"panic_every" json:"panic_every"`
}

// DefaultCadence возвращает периодичность по умолчанию
func DefaultCadence() Cadence {
	return Cadence{
		BreakEvery:    5,
		MiniBossEvery: 7,
		BossEvery:     10,
		PowerEvery:    3,
		FastEvery:     4,
		RangedEvery:   6,
		PanicEvery:    9,
	}
}

func every(waveNumber, period int) bool {
	return period > 0 && waveNumber > 0 && waveNumber%period == 0
}

// Priority возвращает приоритетный тип (Boss, MiniBoss, Break) для номера волны.
// ok == false, если ни одно приоритетное правило не сработало.
func (c Cadence) Priority(waveNumber int) (Type, bool) {
	switch {
	case every(waveNumber, c.BossEvery):
		return Boss, true
	case every(waveNumber, c.MiniBossEvery):
		return MiniBoss, true
	case every(waveNumber, c.BreakEvery):
		return Break, true
	}
	return Normal, false
}

// Eligible возвращает множество кандидатов для номера волны.
// Для приоритетной волны это ровно один тип, иначе Normal плюс
// совпавшие по периодичности смешанные типы.
func (c Cadence) Eligible(waveNumber int) []Type {
	if t, ok := c.Priority(waveNumber); ok {
		return []Type{t}
	}

	candidates := []Type{Normal}
	if every(waveNumber, c.PowerEvery) {
		candidates = append(candidates, Power)
	}
	if every(waveNumber, c.FastEvery) {
		candidates = append(candidates, FastVariant)
	}
	if every(waveNumber, c.RangedEvery) {
		candidates = append(candidates, RangedVariant)
	}
	if every(waveNumber, c.PanicEvery) {
		candidates = append(candidates, PanicMix)
	}
	return candidates
}

// Classifier определяет тип волны по её номеру.
// Не потокобезопасен: генератор случайных чисел принадлежит вызывающему.
type Classifier struct {
	cadence Cadence
	rng     *rand.Rand
}

// NewClassifier создаёт классификатор с заданной периодичностью
func NewClassifier(cadence Cadence, rng *rand.Rand) *Classifier {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Classifier{cadence: cadence, rng: rng}
}

// Cadence возвращает периодичность классификатора
func (c *Classifier) Cadence() Cadence {
	return c.cadence
}

// Classify возвращает тип волны. Boss, MiniBoss и Break имеют абсолютный
// приоритет, среди остальных кандидатов выбор равновероятный.
func (c *Classifier) Classify(waveNumber int) Type {
	candidates := c.cadence.Eligible(waveNumber)
	if len(candidates) == 1 {
		return candidates[0]
	}
	return candidates[c.rng.Intn(len(candidates))]
}
