package runstats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector экспортирует статистику забега в Prometheus.
// Подключается к Recorder через AddListener.
type Collector struct {
	wavesCleared    prometheus.Counter
	enemiesDefeated prometheus.Counter
	damageTaken     prometheus.Counter
}

// NewCollector создаёт метрики и регистрирует их в reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		wavesCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "horde",
			Subsystem: "run",
			Name:      "waves_cleared_total",
			Help:      "Число зачищенных волн с запуска процесса.",
		}),
		enemiesDefeated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "horde",
			Subsystem: "run",
			Name:      "enemies_defeated_total",
			Help:      "Число убитых противников с запуска процесса.",
		}),
		damageTaken: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "horde",
			Subsystem: "run",
			Name:      "player_damage_taken_total",
			Help:      "Суммарный урон, полученный игроком.",
		}),
	}

	for _, m := range []prometheus.Collector{c.wavesCleared, c.enemiesDefeated, c.damageTaken} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) WaveCleared() { c.wavesCleared.Inc() }

func (c *Collector) EnemyDefeated() { c.enemiesDefeated.Inc() }

func (c *Collector) DamageTaken(amount int) { c.damageTaken.Add(float64(amount)) }
