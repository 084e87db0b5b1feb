package director

import (
	"github.com/annel0/horde-waves/internal/wave"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — Prometheus-метрики режиссёра. Nil-указатель допустим: методы ничего не делают.
type Metrics struct {
	wavesStarted  *prometheus.CounterVec
	wavesCleared  prometheus.Counter
	spawnsRefused prometheus.Counter
	staleDeaths   prometheus.Counter
	actorsAlive   prometheus.Gauge
	waveNumber    prometheus.Gauge
	epoch         prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		wavesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "horde",
			Subsystem: "director",
			Name:      "waves_started_total",
			Help:      "Число начатых волн по типам.",
		}, []string{"type"}),
		wavesCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "horde",
			Subsystem: "director",
			Name:      "waves_cleared_total",
			Help:      "Число завершённых (зачищенных) волн.",
		}),
		spawnsRefused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "horde",
			Subsystem: "director",
			Name:      "spawns_refused_total",
			Help:      "Слоты спавна, пропущенные из-за предела живых акторов.",
		}),
		staleDeaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "horde",
			Subsystem: "director",
			Name:      "stale_deaths_total",
			Help:      "Уведомления о гибели из устаревшей эпохи.",
		}),
		actorsAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "horde",
			Subsystem: "director",
			Name:      "actors_alive",
			Help:      "Живые акторы текущей волны.",
		}),
		waveNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "horde",
			Subsystem: "director",
			Name:      "wave_number",
			Help:      "Номер текущей волны.",
		}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "horde",
			Subsystem: "director",
			Name:      "epoch",
			Help:      "Текущая эпоха (растёт при каждом принудительном сбросе).",
		}),
	}

	collectors := []prometheus.Collector{
		m.wavesStarted, m.wavesCleared, m.spawnsRefused, m.staleDeaths,
		m.actorsAlive, m.waveNumber, m.epoch,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) waveStarted(t wave.Type, waveNumber int) {
	if m == nil {
		return
	}
	m.wavesStarted.WithLabelValues(t.String()).Inc()
	m.waveNumber.Set(float64(waveNumber))
}

func (m *Metrics) waveCleared() {
	if m == nil {
		return
	}
	m.wavesCleared.Inc()
}

func (m *Metrics) spawnRefused() {
	if m == nil {
		return
	}
	m.spawnsRefused.Inc()
}

func (m *Metrics) staleDeath() {
	if m == nil {
		return
	}
	m.staleDeaths.Inc()
}

func (m *Metrics) setAlive(n int) {
	if m == nil {
		return
	}
	m.actorsAlive.Set(float64(n))
}

func (m *Metrics) setEpoch(e uint64) {
	if m == nil {
		return
	}
	m.epoch.Set(float64(e))
}
