package wave

import (
	"math"
	"math/rand"
	"time"
)

// Shape описывает форму волны смешанного типа:
// count = max(MinCount, round(round(base*CountFactor) * U(1-Variance, 1+Variance))),
// interval = current * U(IntervalMin, IntervalMax), не ниже минимального.
type Shape struct {
	CountFactor float64 `yaml:"count_factor" json:"count_factor"`
	MinCount    int     `yaml:"min_count" json:"min_count"`
	Variance    float64 `yaml:"variance" json:"variance"`
	IntervalMin float64 `yaml:"interval_min" json:"interval_min"`
	IntervalMax float64 `yaml:"interval_max" json:"interval_max"`
}

// Shapes задаёт формы волн по типам
type Shapes struct {
	Normal Shape `yaml:"normal" json:"normal"`
	Power  Shape `yaml:"power" json:"power"`
	Fast   Shape `yaml:"fast" json:"fast"`
	Ranged Shape `yaml:"ranged" json:"ranged"`
	Panic  Shape `yaml:"panic" json:"panic"`
}

// GeneratorConfig настраивает прогрессию волн
type GeneratorConfig struct {
	StartingEnemyCount    int           `yaml:"starting_enemy_count" json:"starting_enemy_count"`
	StartingSpawnInterval time.Duration `yaml:"starting_spawn_interval" json:"starting_spawn_interval"`
	MinSpawnInterval      time.Duration `yaml:"min_spawn_interval" json:"min_spawn_interval"`
	EnemyCountGrowth      float64       `yaml:"enemy_count_growth" json:"enemy_count_growth"`
	SpawnIntervalDecay    float64       `yaml:"spawn_interval_decay" json:"spawn_interval_decay"`
	MiniBossMinCount      int           `yaml:"miniboss_min_count" json:"miniboss_min_count"`
	Shapes                Shapes        `yaml:"shapes" json:"shapes"`
}

// DefaultGeneratorConfig возвращает настройки прогрессии по умолчанию
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		StartingEnemyCount:    5,
		StartingSpawnInterval: 800 * time.Millisecond,
		MinSpawnInterval:      150 * time.Millisecond,
		EnemyCountGrowth:      1.25,
		SpawnIntervalDecay:    0.95,
		MiniBossMinCount:      4,
		Shapes: Shapes{
			Normal: Shape{CountFactor: 1.0, MinCount: 2, Variance: 0.25, IntervalMin: 1.0, IntervalMax: 1.0},
			Power:  Shape{CountFactor: 1.6, MinCount: 8, Variance: 0.25, IntervalMin: 0.55, IntervalMax: 0.75},
			Fast:   Shape{CountFactor: 1.2, MinCount: 6, Variance: 0.25, IntervalMin: 0.6, IntervalMax: 0.8},
			Ranged: Shape{CountFactor: 1.1, MinCount: 4, Variance: 0.25, IntervalMin: 0.8, IntervalMax: 1.0},
			Panic:  Shape{CountFactor: 1.3, MinCount: 6, Variance: 0.30},
		},
	}
}

// Generator превращает тип волны и счётчики прогрессии в Definition.
// Не потокобезопасен: вызовы сериализует владелец (режиссёр волн).
type Generator struct {
	cfg        GeneratorConfig
	classifier *Classifier
	rng        *rand.Rand
	prog       Progression
}

// NewGenerator создаёт генератор с начальными счётчиками из конфигурации
func NewGenerator(cfg GeneratorConfig, classifier *Classifier, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if classifier == nil {
		classifier = NewClassifier(Cadence{}, rng)
	}
	if cfg.StartingEnemyCount < 1 {
		cfg.StartingEnemyCount = 1
	}
	if cfg.MinSpawnInterval < 0 {
		cfg.MinSpawnInterval = 0
	}

	g := &Generator{cfg: cfg, classifier: classifier, rng: rng}
	g.Reset()
	return g
}

// Reset возвращает прогрессию к начальному состоянию
func (g *Generator) Reset() {
	interval := g.cfg.StartingSpawnInterval
	if interval < g.cfg.MinSpawnInterval {
		interval = g.cfg.MinSpawnInterval
	}
	g.prog = Progression{
		WaveNumber:     0,
		BaseEnemyCount: g.cfg.StartingEnemyCount,
		SpawnInterval:  interval,
	}
}

// Progression возвращает копию текущих счётчиков
func (g *Generator) Progression() Progression {
	return g.prog
}

// Classifier возвращает используемый классификатор
func (g *Generator) Classifier() *Classifier {
	return g.classifier
}

// JumpTo выставляет номер текущей волны (отладочный переход).
// Остальные счётчики прогрессии не меняются.
func (g *Generator) JumpTo(waveNumber int) {
	if waveNumber < 0 {
		waveNumber = 0
	}
	g.prog.WaveNumber = waveNumber
}

// Next увеличивает номер волны, классифицирует её, строит определение
// и продвигает прогрессию.
func (g *Generator) Next() Definition {
	g.prog.WaveNumber++
	t := g.classifier.Classify(g.prog.WaveNumber)
	def := g.Compose(t)
	g.Advance(t)
	return def
}

// Compose строит определение волны типа t для текущего номера,
// не изменяя прогрессию.
func (g *Generator) Compose(t Type) Definition {
	def := Definition{Name: Name(g.prog.WaveNumber, t), Type: t}

	base := g.prog.BaseEnemyCount
	current := g.prog.SpawnInterval
	shapes := g.cfg.Shapes

	switch t {
	case Break:
		return def
	case MiniBoss:
		minCount := g.cfg.MiniBossMinCount
		if minCount < 1 {
			minCount = 1
		}
		def.EnemyCount = maxInt(minCount, base/2)
		def.SpawnInterval = current
	case Boss:
		def.EnemyCount = 1
		def.SpawnInterval = 0
	case Power:
		def.EnemyCount, def.SpawnInterval = g.shaped(shapes.Power, base, current)
	case FastVariant:
		def.EnemyCount, def.SpawnInterval = g.shaped(shapes.Fast, base, current)
	case RangedVariant:
		def.EnemyCount, def.SpawnInterval = g.shaped(shapes.Ranged, base, current)
	case PanicMix:
		def.EnemyCount, _ = g.shaped(shapes.Panic, base, current)
		def.SpawnInterval = g.cfg.MinSpawnInterval
	default:
		def.EnemyCount, def.SpawnInterval = g.shaped(shapes.Normal, base, current)
	}

	if def.SpawnInterval < g.cfg.MinSpawnInterval {
		def.SpawnInterval = g.cfg.MinSpawnInterval
	}
	return def
}

// Advance применяет рост прогрессии после волны типа t.
// Break-волны прогрессию не меняют.
func (g *Generator) Advance(t Type) {
	if t == Break {
		return
	}

	grown := int(math.Round(float64(g.prog.BaseEnemyCount) * g.cfg.EnemyCountGrowth))
	if grown > g.prog.BaseEnemyCount {
		g.prog.BaseEnemyCount = grown
	}

	next := time.Duration(float64(g.prog.SpawnInterval) * g.cfg.SpawnIntervalDecay)
	if next < g.cfg.MinSpawnInterval {
		next = g.cfg.MinSpawnInterval
	}
	g.prog.SpawnInterval = next
}

func (g *Generator) shaped(s Shape, base int, current time.Duration) (int, time.Duration) {
	factor := s.CountFactor
	if factor <= 0 {
		factor = 1
	}
	target := math.Round(float64(base) * factor)
	count := int(math.Round(target * g.uniform(1-s.Variance, 1+s.Variance)))
	count = maxInt(s.MinCount, count)
	if count < 0 {
		count = 0
	}

	interval := time.Duration(float64(current) * g.uniform(s.IntervalMin, s.IntervalMax))
	return count, interval
}

func (g *Generator) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.Float64()*(hi-lo)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
