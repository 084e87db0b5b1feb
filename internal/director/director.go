// Package director ведёт бесконечную последовательность волн: готовит
// следующую волну, спавнит противников по таймеру, сводит уведомления
// о гибели с активной волной и переходит к следующей после зачистки.
//
// Все уведомления о гибели помечены эпохой. ForceWave и Shutdown
// увеличивают эпоху или останавливают режиссёра, поэтому поздние
// уведомления от старых акторов не влияют на новую волну.
package director

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/logging"
	"github.com/annel0/horde-waves/internal/scaling"
	"github.com/annel0/horde-waves/internal/spawner"
	"github.com/annel0/horde-waves/internal/wave"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrMissingCollaborator — не задана фабрика акторов или источник данных игрока
	ErrMissingCollaborator = errors.New("director: required collaborator is missing")
	// ErrShutdown — режиссёр уже остановлен
	ErrShutdown = errors.New("director: shut down")
)

// Deps содержит зависимости режиссёра. Generator, Scaler, Spawner и Player обязательны
// для Start; остальные могут быть nil.
type Deps struct {
	Generator  *wave.Generator
	Scaler     *scaling.Scaler
	Spawner    *spawner.Spawner
	Player     PlayerProvider
	Health     PlayerHealth
	Stats      RunStats
	XP         XPSink
	Presenters []Presenter
	Metrics    *Metrics
	Tracer     trace.Tracer
	Logger     *logging.Logger
}

// ForceOptions управляет принудительным запуском волны
type ForceOptions struct {
	// WaveNumber > 0 переводит счётчик волн на указанный номер
	WaveNumber int
	// Chain продолжает генерируемые волны после зачистки принудительной
	Chain bool
}

// Director представляет конечный автомат волн
type Director struct {
	cfg        Config
	generator  *wave.Generator
	scaler     *scaling.Scaler
	spawner    *spawner.Spawner
	player     PlayerProvider
	health     PlayerHealth
	stats      RunStats
	xp         XPSink
	presenters []Presenter
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *logging.Logger

	// control сериализует Start, ForceWave и Shutdown
	control sync.Mutex

	mu           sync.Mutex
	state        State
	active       *wave.Definition
	activeNumber int
	aliveCount   int
	waveActive   bool
	spawnDone    bool
	cleared      chan struct{}
	tracked      map[uint64]enemy.Handle
	shuttingDown bool

	epoch       uint64
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	epochCtx    context.Context
	epochCancel context.CancelFunc
	seqCancel   context.CancelFunc
	seqDone     chan struct{}
	seqChain    bool
	watchers    sync.WaitGroup

	pauses       map[PauseSource]bool
	pauseChanged chan struct{}
}

// New создаёт режиссёра в состоянии Idle. Последовательность не запускается до Start.
func New(cfg Config, deps Deps) *Director {
	logger := deps.Logger
	if logger == nil {
		logger = logging.For(logging.Director)
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/annel0/horde-waves/internal/director")
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	epochCtx, epochCancel := context.WithCancel(rootCtx)

	return &Director{
		cfg:          cfg,
		generator:    deps.Generator,
		scaler:       deps.Scaler,
		spawner:      deps.Spawner,
		player:       deps.Player,
		health:       deps.Health,
		stats:        deps.Stats,
		xp:           deps.XP,
		presenters:   append([]Presenter(nil), deps.Presenters...),
		metrics:      deps.Metrics,
		tracer:       tracer,
		logger:       logger,
		state:        Idle,
		tracked:      make(map[uint64]enemy.Handle),
		rootCtx:      rootCtx,
		rootCancel:   rootCancel,
		epochCtx:     epochCtx,
		epochCancel:  epochCancel,
		pauses:       make(map[PauseSource]bool),
		pauseChanged: make(chan struct{}),
	}
}

// AddPresenter подключает получателя уведомлений о волнах.
// Вызывается до Start.
func (d *Director) AddPresenter(p Presenter) {
	d.mu.Lock()
	d.presenters = append(d.presenters, p)
	d.mu.Unlock()
}

func (d *Director) validate() error {
	var missing []string
	if d.spawner == nil || !d.spawner.HasFactory() {
		missing = append(missing, "actor factory")
	}
	if d.player == nil {
		missing = append(missing, "player provider")
	}
	if d.generator == nil {
		missing = append(missing, "wave generator")
	}
	if d.scaler == nil {
		missing = append(missing, "difficulty scaler")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingCollaborator, missing)
	}
	return nil
}

// Start запускает бесконечную последовательность волн.
// Без обязательных зависимостей режиссёр остаётся в Idle и возвращает ErrMissingCollaborator.
func (d *Director) Start() error {
	d.control.Lock()
	defer d.control.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.shuttingDown {
		return ErrShutdown
	}
	if err := d.validate(); err != nil {
		d.state = Idle
		d.logger.Error("❌ Режиссёр волн не запущен: %v", err)
		return err
	}
	if d.sequenceRunningLocked() {
		if !d.seqChain {
			// идёт одиночная принудительная волна: после неё продолжаем генерацию
			d.seqChain = true
			d.logger.Info("🌊 Режиссёр волн продолжит после принудительной волны")
			return nil
		}
		d.logger.Warn("⚠️ Режиссёр волн уже запущен")
		return nil
	}

	d.startSequenceLocked(nil, true)
	d.logger.Info("🌊 Режиссёр волн запущен")
	return nil
}

// ForceWave прерывает текущую последовательность, убирает живых акторов
// без засчитывания убийств, увеличивает эпоху и сразу запускает def.
func (d *Director) ForceWave(def wave.Definition, opts ForceOptions) error {
	if err := def.Validate(); err != nil {
		return err
	}
	return d.force(func() wave.Definition { return def }, opts)
}

// ForceWaveType работает как ForceWave, но определение волны типа t
// строит генератор для текущего (или заданного opts.WaveNumber) номера
// без продвижения прогрессии.
func (d *Director) ForceWaveType(t wave.Type, opts ForceOptions) error {
	if err := (wave.Definition{Type: t}).Validate(); err != nil {
		return err
	}
	return d.force(func() wave.Definition { return d.generator.Compose(t) }, opts)
}

func (d *Director) force(build func() wave.Definition, opts ForceOptions) error {
	d.control.Lock()
	defer d.control.Unlock()

	d.mu.Lock()
	if d.shuttingDown {
		d.mu.Unlock()
		return ErrShutdown
	}
	if err := d.validate(); err != nil {
		d.mu.Unlock()
		d.logger.Error("❌ Принудительная волна отклонена: %v", err)
		return err
	}
	cancel, done := d.seqCancel, d.seqDone
	d.mu.Unlock()

	// старая последовательность должна полностью завершиться до изменения состояния
	if cancel != nil {
		cancel()
		<-done
	}

	d.mu.Lock()
	if d.shuttingDown {
		d.mu.Unlock()
		return ErrShutdown
	}

	leftovers := d.resetEpochLocked()
	if opts.WaveNumber > 0 {
		d.generator.JumpTo(opts.WaveNumber)
	}
	def := build().Normalize(d.generator.Progression().WaveNumber)
	epoch := d.epoch
	d.mu.Unlock()

	for _, h := range leftovers {
		h.Despawn()
		d.spawner.Release()
	}
	d.metrics.setAlive(0)
	d.metrics.setEpoch(epoch)

	d.mu.Lock()
	if d.shuttingDown {
		d.mu.Unlock()
		return ErrShutdown
	}
	d.startSequenceLocked(&def, opts.Chain)
	d.mu.Unlock()

	d.logger.Info("⏩ Принудительная волна %q (эпоха %d, продолжение: %v)", def.Name, epoch, opts.Chain)
	return nil
}

// resetEpochLocked отменяет подписки текущей эпохи, начинает новую
// и возвращает акторов, которых нужно убрать.
func (d *Director) resetEpochLocked() []enemy.Handle {
	d.epochCancel()
	d.epoch++
	d.epochCtx, d.epochCancel = context.WithCancel(d.rootCtx)

	leftovers := make([]enemy.Handle, 0, len(d.tracked))
	for _, h := range d.tracked {
		leftovers = append(leftovers, h)
	}
	d.tracked = make(map[uint64]enemy.Handle)

	d.aliveCount = 0
	d.waveActive = false
	d.spawnDone = false
	d.active = nil
	d.state = Preparing
	return leftovers
}

// Shutdown останавливает режиссёра. Последующие уведомления и продолжения ничего не делают.
func (d *Director) Shutdown() {
	d.control.Lock()
	defer d.control.Unlock()

	d.mu.Lock()
	if d.shuttingDown {
		d.mu.Unlock()
		return
	}
	d.shuttingDown = true
	d.state = Stopped
	d.waveActive = false
	done := d.seqDone
	d.rootCancel()
	d.mu.Unlock()

	if done != nil {
		<-done
	}
	d.watchers.Wait()
	d.logger.Info("🛑 Режиссёр волн остановлен")
}

func (d *Director) sequenceRunningLocked() bool {
	if d.seqDone == nil {
		return false
	}
	select {
	case <-d.seqDone:
		return false
	default:
		return true
	}
}

func (d *Director) startSequenceLocked(first *wave.Definition, chain bool) {
	ctx, cancel := context.WithCancel(d.epochCtx)
	done := make(chan struct{})
	d.seqCancel, d.seqDone, d.seqChain = cancel, done, chain
	go d.runSequence(ctx, d.epoch, first, done)
}

// runSequence готовит и проводит волны; одновременно работает только одна такая горутина
func (d *Director) runSequence(ctx context.Context, epoch uint64, first *wave.Definition, done chan struct{}) {
	defer close(done)

	if first != nil {
		if !d.playWave(ctx, epoch, *first) {
			return
		}
		d.mu.Lock()
		if d.epoch != epoch || d.shuttingDown {
			d.mu.Unlock()
			return
		}
		if !d.seqChain {
			// последовательность отпускается под mu, чтобы Start не принял её за живую
			d.state = Idle
			d.active = nil
			d.seqCancel()
			d.seqCancel, d.seqDone = nil, nil
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
		if !d.wait(ctx, d.cfg.TimeBetweenWaves) {
			return
		}
	}

	for {
		d.mu.Lock()
		if d.epoch != epoch || d.shuttingDown {
			d.mu.Unlock()
			return
		}
		d.state = Preparing
		def := d.generator.Next()
		d.mu.Unlock()

		if !d.playWave(ctx, epoch, def) {
			return
		}
		if !d.wait(ctx, d.cfg.TimeBetweenWaves) {
			return
		}
	}
}

// playWave проводит одну волну и возвращает true после её завершения.
// false означает отмену: эпоха сменилась или режиссёр остановлен.
func (d *Director) playWave(ctx context.Context, epoch uint64, def wave.Definition) bool {
	d.mu.Lock()
	if d.epoch != epoch || d.shuttingDown {
		d.mu.Unlock()
		return false
	}
	waveNumber := d.generator.Progression().WaveNumber
	active := def
	d.active = &active
	d.activeNumber = waveNumber
	d.state = Preparing
	presenters := d.presenters
	d.mu.Unlock()

	ctx, span := d.tracer.Start(ctx, "wave",
		trace.WithAttributes(
			attribute.Int("wave.number", waveNumber),
			attribute.String("wave.type", def.Type.String()),
			attribute.Int("wave.enemy_count", def.EnemyCount),
			attribute.Int64("wave.epoch", int64(epoch)),
		))
	defer span.End()

	d.logger.Info("🌊 %s (%s): противников %d, интервал %s", def.Name, def.Type, def.EnemyCount, def.SpawnInterval)
	d.metrics.waveStarted(def.Type, waveNumber)
	for _, p := range presenters {
		p.WaveStarted(def, waveNumber)
	}

	if def.Type == wave.Break {
		return d.playBreak(ctx, epoch, span)
	}

	d.mu.Lock()
	if d.epoch != epoch || d.shuttingDown {
		d.mu.Unlock()
		return false
	}
	d.state = Spawning
	d.waveActive = true
	d.aliveCount = 0
	d.spawnDone = false
	cleared := make(chan struct{})
	d.cleared = cleared
	d.mu.Unlock()

	interval := def.SpawnInterval
	if def.Type == wave.PanicMix {
		interval = 0
	}

	spawned := 0
	for slot := 0; slot < def.EnemyCount; slot++ {
		if slot > 0 && !d.wait(ctx, interval) {
			span.SetStatus(codes.Error, "cancelled while spawning")
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		if d.spawnSlot(ctx, epoch, def, waveNumber, slot) {
			spawned++
		}
	}
	span.SetAttributes(attribute.Int("wave.spawned", spawned))

	d.mu.Lock()
	if d.epoch != epoch || d.shuttingDown {
		d.mu.Unlock()
		return false
	}
	d.spawnDone = true
	d.state = Active
	var (
		finished bool
		wake     chan struct{}
	)
	if d.waveActive && d.aliveCount == 0 {
		finished, wake = d.endWaveLocked()
	}
	d.mu.Unlock()

	d.logger.Debug("Спавн волны %d завершён: создано %d из %d", waveNumber, spawned, def.EnemyCount)
	d.finishWave(def, waveNumber, finished, wake)

	select {
	case <-cleared:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Director) playBreak(ctx context.Context, epoch uint64, span trace.Span) bool {
	d.mu.Lock()
	if d.epoch != epoch || d.shuttingDown {
		d.mu.Unlock()
		return false
	}
	d.state = Break
	d.waveActive = false
	d.aliveCount = 0
	d.mu.Unlock()

	if d.health != nil && d.cfg.BreakHealAmount > 0 {
		d.health.Heal(d.cfg.BreakHealAmount)
		span.AddEvent("heal", trace.WithAttributes(attribute.Int("amount", d.cfg.BreakHealAmount)))
	}

	if !d.wait(ctx, d.cfg.BreakDuration) {
		return false
	}

	d.mu.Lock()
	if d.epoch == epoch && !d.shuttingDown {
		d.state = Completing
	}
	d.mu.Unlock()
	d.logger.Info("☕ Перерыв окончен")
	return true
}

// spawnSlot заполняет один слот волны. Отказ спавнера пропускает слот без учёта.
func (d *Director) spawnSlot(ctx context.Context, epoch uint64, def wave.Definition, waveNumber, slot int) bool {
	h, err := d.spawner.TrySpawn(ctx, def.Type, d.player.Position())
	if err != nil {
		if errors.Is(err, spawner.ErrSpawnRefused) {
			d.metrics.spawnRefused()
			d.logger.Debug("Слот %d волны %d пропущен: достигнут предел живых акторов", slot, waveNumber)
		} else if ctx.Err() == nil {
			d.logger.Warn("⚠️ Не удалось создать актора для слота %d волны %d: %v", slot, waveNumber, err)
		}
		return false
	}

	isPrimary := def.Type == wave.MiniBoss && slot == 0
	m := d.scaler.Multipliers(waveNumber, d.player.Level(), def.Type, isPrimary)
	h.SetStats(scaling.Apply(h.Stats(), m))

	d.mu.Lock()
	if d.epoch != epoch || d.shuttingDown {
		d.mu.Unlock()
		h.Despawn()
		d.spawner.Release()
		return false
	}
	d.tracked[h.ID()] = h
	d.aliveCount++
	alive := d.aliveCount
	watchCtx := d.epochCtx
	d.watchers.Add(1)
	d.mu.Unlock()

	d.metrics.setAlive(alive)
	go d.watch(watchCtx, epoch, h)
	return true
}

// watch подписывается на гибель одного актора в рамках эпохи
func (d *Director) watch(ctx context.Context, epoch uint64, h enemy.Handle) {
	defer d.watchers.Done()

	select {
	case <-h.Died():
		d.HandleActorDied(epoch, h)
	case <-ctx.Done():
	}
}

// HandleActorDied засчитывает гибель актора. Уведомления из устаревшей эпохи,
// после Shutdown или по неотслеживаемому актору игнорируются; каждый актор
// засчитывается не более одного раза.
func (d *Director) HandleActorDied(epoch uint64, h enemy.Handle) {
	d.mu.Lock()
	if d.shuttingDown || epoch != d.epoch {
		d.mu.Unlock()
		d.metrics.staleDeath()
		d.logger.Trace("Устаревшее уведомление о гибели актора %d (эпоха %d)", h.ID(), epoch)
		return
	}
	if _, ok := d.tracked[h.ID()]; !ok {
		d.mu.Unlock()
		return
	}

	delete(d.tracked, h.ID())
	d.aliveCount--
	if d.aliveCount < 0 {
		d.invariantViolated("alive count dropped below zero (%d)", d.aliveCount)
		d.aliveCount = 0
	}
	alive := d.aliveCount
	waveNumber := d.activeNumber
	var def wave.Definition
	if d.active != nil {
		def = *d.active
	}
	var (
		finished bool
		wake     chan struct{}
	)
	if d.waveActive && d.aliveCount == 0 && d.spawnDone {
		finished, wake = d.endWaveLocked()
	}
	presenters := d.presenters
	d.mu.Unlock()

	d.spawner.Release()
	d.metrics.setAlive(alive)
	if d.stats != nil {
		d.stats.RegisterEnemyDefeated()
	}
	if d.xp != nil {
		d.xp.GainXP(h.Stats().XPValue)
	}
	for _, p := range presenters {
		if dp, ok := p.(DefeatPresenter); ok {
			dp.EnemyDefeated(h.Variant(), waveNumber)
		}
	}

	d.finishWave(def, waveNumber, finished, wake)
}

// endWaveLocked закрывает волну ровно один раз. Возвращает признак
// засчитываемой зачистки и канал, который нужно закрыть после учёта статистики.
func (d *Director) endWaveLocked() (bool, chan struct{}) {
	if !d.waveActive {
		return false, nil
	}
	d.waveActive = false
	d.state = Completing
	cleared := d.cleared
	d.cleared = nil
	return d.active != nil && d.active.Type != wave.Break, cleared
}

// finishWave учитывает зачистку и только затем будит горутину последовательности
func (d *Director) finishWave(def wave.Definition, waveNumber int, counted bool, wake chan struct{}) {
	if counted {
		d.afterWaveCleared(def, waveNumber)
	}
	if wake != nil {
		close(wake)
	}
}

func (d *Director) afterWaveCleared(def wave.Definition, waveNumber int) {
	d.mu.Lock()
	presenters := d.presenters
	d.mu.Unlock()

	d.logger.Info("✅ %s зачищена", def.Name)
	d.metrics.waveCleared()
	if d.stats != nil {
		d.stats.RegisterWaveCleared()
	}
	for _, p := range presenters {
		if cp, ok := p.(ClearPresenter); ok {
			cp.WaveCleared(def, waveNumber)
		}
	}
}

func (d *Director) invariantViolated(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if d.cfg.StrictInvariants {
		panic("director: " + msg)
	}
	d.logger.Error("❌ Нарушен инвариант: %s", msg)
}

// CurrentWaveNumber возвращает номер последней начатой волны
func (d *Director) CurrentWaveNumber() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.generator == nil {
		return 0
	}
	return d.generator.Progression().WaveNumber
}

// IsWaveActive сообщает, идёт ли боевая волна
func (d *Director) IsWaveActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waveActive
}

// State возвращает текущую фазу
func (d *Director) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Epoch возвращает текущую эпоху
func (d *Director) Epoch() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.epoch
}

// Snapshot возвращает копию состояния
func (d *Director) Snapshot() RunState {
	d.mu.Lock()
	defer d.mu.Unlock()

	rs := RunState{
		AliveCount: d.aliveCount,
		WaveActive: d.waveActive,
		Epoch:      d.epoch,
		State:      d.state,
		Paused:     d.pauseSourcesLocked(),
	}
	if d.generator != nil {
		rs.WaveNumber = d.generator.Progression().WaveNumber
	}
	if d.active != nil {
		def := *d.active
		rs.ActiveWave = &def
	}
	return rs
}

// Progression возвращает счётчики генератора
func (d *Director) Progression() wave.Progression {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.generator == nil {
		return wave.Progression{}
	}
	return d.generator.Progression()
}
