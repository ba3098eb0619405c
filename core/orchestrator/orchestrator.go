// Package orchestrator wires ContextStore, MessageBroker, AIRegistry,
// StrategySelector and ResponseQueue together: it is the component that
// owns lifecycle, the sleep/wake state machine, the background
// conversation loop, and prompt assembly (spec §4.6).
package orchestrator

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/swarmchat/core/broker"
	"github.com/hrygo/swarmchat/core/chatmodel"
	"github.com/hrygo/swarmchat/core/registry"
	"github.com/hrygo/swarmchat/core/respqueue"
	"github.com/hrygo/swarmchat/core/strategy"
)

// PersistenceStore is the optional history sink. A nil PersistenceStore
// means memory-only operation; absence must never fail a message.
type PersistenceStore interface {
	SaveMessage(roomID string, m chatmodel.Message) error
}

// MetricsSink is the optional metrics collaborator. A nil MetricsSink is a
// no-op.
type MetricsSink interface {
	ObserveEvent(eventType, roomID string)
}

// Orchestrator is the central coordinator described in spec §4.6.
type Orchestrator struct {
	cfg Config

	broker    *broker.Broker
	registry  *registry.Registry
	allowList *chatmodel.RoomAllowList
	queue     *respqueue.Queue
	events    *eventDispatcher

	persistence PersistenceStore
	metrics     MetricsSink

	roomsMu sync.Mutex
	rooms   map[string]*roomState

	rnd *rand.Rand

	stopped bool
}

// New creates an Orchestrator wired to broker, registry and allowList, and
// starts its own ResponseQueue and event dispatcher. callback receives
// outbound events (ai-response, ai-error, sleep/wake, topic changes); it
// may be nil.
func New(cfg Config, br *broker.Broker, reg *registry.Registry, allowList *chatmodel.RoomAllowList, persistence PersistenceStore, metrics MetricsSink, callback EventCallback) *Orchestrator {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 100
	}

	var seed int64
	if cfg.UseSeed || cfg.RandSeed != 0 {
		seed = cfg.RandSeed
	} else {
		seed = time.Now().UnixNano()
	}
	// strategy.Select/respqueue.Delay/strategy.AddMention all take a
	// *rand.Rand by reference and call its methods directly, and they are
	// invoked from both the broker's processing goroutine (schedule) and
	// per-task generation goroutines (generate). A bare *rand.Rand is not
	// safe for concurrent use, so every Orchestrator shares one Rand built
	// on a mutex-guarded Source instead of locking around each call site.
	src := &lockedSource{src: rand.NewSource(seed)}

	o := &Orchestrator{
		cfg:         cfg,
		broker:      br,
		registry:    reg,
		allowList:   allowList,
		persistence: persistence,
		metrics:     metrics,
		rooms:       make(map[string]*roomState),
		rnd:         rand.New(src),
		events:      newEventDispatcher(callback),
	}

	o.queue = respqueue.New(o.dispatchGeneration, o.allRoomsSleeping)
	br.Subscribe(o.onBrokerEvent)
	return o
}

// AddMessage enqueues an inbound message onto the broker. Mentions and
// MentionsNormalized are (re)derived from Content so a gateway adapter never
// has to perform lexical mention extraction itself (I5 holds for every
// message, not only AI-generated ones).
func (o *Orchestrator) AddMessage(m chatmodel.Message) {
	m.Mentions = strategy.ExtractMentions(m.Content)
	m.MentionsNormalized = strategy.MentionsNormalized(m.Mentions)
	o.broker.Enqueue(m, nil)
}

// ChangeTopic enqueues a system message announcing a topic change, at
// system priority.
func (o *Orchestrator) ChangeTopic(newTopic, by, roomID string) {
	if roomID == "" {
		roomID = DefaultRoomID
	}
	priority := broker.PrioritySystem
	o.broker.Enqueue(chatmodel.Message{
		Sender:     by,
		Content:    fmt.Sprintf("Topic changed to: %q by %s", newTopic, by),
		RoomID:     roomID,
		SenderType: chatmodel.SenderSystem,
	}, &priority)
	o.events.publish(OutboundEvent{Type: EventTopicChanged, RoomID: roomID})
}

// SetRoomAllowedAIs restricts roomID to the given AI ids.
func (o *Orchestrator) SetRoomAllowedAIs(roomID string, aiIDs []string) {
	o.allowList.Set(roomID, aiIDs)
}

// ClearRoomAllowedAIs removes any restriction on roomID.
func (o *Orchestrator) ClearRoomAllowedAIs(roomID string) {
	o.allowList.Clear(roomID)
}

// Wake resets every tracked room to the Awake state.
func (o *Orchestrator) Wake() {
	o.roomsMu.Lock()
	rooms := make([]*roomState, 0, len(o.rooms))
	for _, rs := range o.rooms {
		rooms = append(rooms, rs)
	}
	o.roomsMu.Unlock()

	for _, rs := range rooms {
		rs.mu.Lock()
		rs.sleeping = false
		rs.aiMessageCount = 0
		rs.mu.Unlock()
		o.events.publish(OutboundEvent{Type: EventAIAwakened, RoomID: rs.id})
	}
}

// Sleep forces every tracked room into the Sleeping state.
func (o *Orchestrator) Sleep() {
	o.roomsMu.Lock()
	rooms := make([]*roomState, 0, len(o.rooms))
	for _, rs := range o.rooms {
		rooms = append(rooms, rs)
	}
	o.roomsMu.Unlock()

	for _, rs := range rooms {
		rs.mu.Lock()
		rs.sleeping = true
		rs.mu.Unlock()
		o.events.publish(OutboundEvent{Type: EventAISleeping, RoomID: rs.id})
	}
}

// Cleanup cancels background tickers, clears the ResponseQueue and Broker,
// and drops every room's ContextStore. In-flight capability calls are
// detached; their eventual completion is ignored.
func (o *Orchestrator) Cleanup() {
	o.roomsMu.Lock()
	o.stopped = true
	rooms := o.rooms
	o.rooms = make(map[string]*roomState)
	o.roomsMu.Unlock()

	for _, rs := range rooms {
		rs.mu.Lock()
		if rs.bgTimer != nil {
			rs.bgTimer.Stop()
		}
		rs.mu.Unlock()
		rs.ctx.Clear()
	}

	o.queue.Clear()
	o.broker.Clear()
	o.events.stop()
}

// room returns the roomState for id, creating it (and arming its
// background ticker) on first use.
func (o *Orchestrator) room(id string) *roomState {
	if id == "" {
		id = DefaultRoomID
	}

	o.roomsMu.Lock()
	rs, ok := o.rooms[id]
	if !ok {
		rs = newRoomState(id, o.cfg.MaxMessages)
		o.rooms[id] = rs
	}
	stopped := o.stopped
	o.roomsMu.Unlock()

	if !ok && !stopped {
		o.armBackgroundTick(rs, SleepRetry)
	}
	return rs
}

func (o *Orchestrator) allRoomsSleeping() bool {
	o.roomsMu.Lock()
	defer o.roomsMu.Unlock()
	for _, rs := range o.rooms {
		if !rs.isSleeping() {
			return false
		}
	}
	return len(o.rooms) > 0
}

func (o *Orchestrator) onBrokerEvent(ev broker.Event) {
	switch ev.Type {
	case broker.EventMessageReady:
		o.handleReady(ev.Message)
	case broker.EventError, broker.EventMessageError:
		slog.Warn("orchestrator: broker reported an error", "error", ev.Err)
		if o.metrics != nil {
			o.metrics.ObserveEvent("broker-error", ev.RoomID)
		}
	}
}

// handleReady implements the broker-subscriber side of spec §4.6: append to
// ContextStore, run the sleep/wake transition, optionally schedule
// responses, then broadcast.
func (o *Orchestrator) handleReady(m chatmodel.Message) {
	roomID := m.RoomID
	if roomID == "" {
		roomID = DefaultRoomID
	}
	rs := o.room(roomID)

	rs.ctx.Append(chatmodel.ContextMessage{Message: m})

	if o.persistence != nil {
		if err := o.persistence.SaveMessage(roomID, m); err != nil {
			slog.Warn("orchestrator: persistence write failed, continuing memory-only",
				"room_id", roomID, "error", err)
		}
	}

	if rec, ok := o.registry.FindFromContextMessage(m); ok {
		rec.SetLastMessageTime(nowMillis())
		if m.SenderType == chatmodel.SenderAI {
			rec.SetJustResponded(true)
		}
	}

	switch m.SenderType {
	case chatmodel.SenderUser:
		rs.mu.Lock()
		wasSleeping := rs.sleeping
		rs.sleeping = false
		rs.aiMessageCount = 0
		rs.mu.Unlock()
		if wasSleeping {
			o.events.publish(OutboundEvent{Type: EventAIAwakened, RoomID: roomID})
		}
		if !m.SuppressAIResponses {
			o.schedule(roomID, true)
		}
	case chatmodel.SenderAI:
		rs.mu.Lock()
		rs.aiMessageCount++
		rs.lastAIMessageTime = nowMillis()
		crossed := rs.aiMessageCount >= MaxAIMessages && !rs.sleeping
		if crossed {
			rs.sleeping = true
		}
		rs.mu.Unlock()
		if crossed {
			o.events.publish(OutboundEvent{Type: EventAISleeping, RoomID: roomID})
		}
	}

	o.broker.Broadcast(m, roomID)
}

// schedule implements spec §4.6's eligibility/selection algorithm.
func (o *Orchestrator) schedule(roomID string, isUserResponse bool) {
	rs := o.room(roomID)

	rs.mu.Lock()
	sleeping := rs.sleeping
	rs.mu.Unlock()

	activeAIs := make([]*chatmodel.AIRecord, 0)
	for _, ai := range o.registry.Active() {
		if o.allowList.Allowed(roomID, ai.ID) {
			activeAIs = append(activeAIs, ai)
		}
	}
	if sleeping || len(activeAIs) == 0 {
		return
	}

	typingAICount := 0
	for _, ai := range activeAIs {
		if ai.IsGenerating() {
			typingAICount++
		}
	}

	eligible := make([]*chatmodel.AIRecord, 0, len(activeAIs))
	for _, ai := range activeAIs {
		if ai.IsGenerating() {
			continue
		}
		if isUserResponse || !ai.JustResponded() {
			eligible = append(eligible, ai)
		}
	}
	if len(eligible) == 0 {
		return
	}

	last, haveLast := rs.ctx.LastMessage()

	mentioned := make([]*chatmodel.AIRecord, 0)
	mentionedSet := make(map[string]struct{})
	if haveLast {
		for _, ai := range eligible {
			if _, ok := last.MentionsNormalized[ai.NormalizedAlias]; ok {
				mentioned = append(mentioned, ai)
				mentionedSet[ai.ID] = struct{}{}
			}
		}
	}

	eligibleCount := len(eligible)
	var baseMin, baseMax int
	if isUserResponse {
		baseMin = 1
		baseMax = maxInt(1, int(math.Ceil(0.30*float64(eligibleCount))))
	} else {
		baseMin = 0
		baseMax = maxInt(1, int(math.Ceil(0.25*float64(eligibleCount))))
	}

	finalMin := maxInt(baseMin, len(mentioned))
	finalMax := maxInt(baseMax, finalMin)

	remaining := make([]*chatmodel.AIRecord, 0, len(eligible))
	for _, ai := range eligible {
		if _, ok := mentionedSet[ai.ID]; !ok {
			remaining = append(remaining, ai)
		}
	}

	lo := finalMin - len(mentioned)
	if lo < 0 {
		lo = 0
	}
	hi := finalMax - len(mentioned)
	if hi < lo {
		hi = lo
	}
	if hi > len(remaining) {
		hi = len(remaining)
	}
	if lo > hi {
		lo = hi
	}

	extraCount := lo
	if hi > lo {
		extraCount = lo + o.rnd.Intn(hi-lo+1)
	}

	selected := o.weightedSampleWithoutReplacement(remaining, extraCount)

	batch := make([]*chatmodel.AIRecord, 0, len(mentioned)+len(selected))
	batch = append(batch, mentioned...)
	batch = append(batch, selected...)
	if len(batch) == 0 {
		return
	}

	tasks := make([]chatmodel.QueuedResponse, 0, len(batch))
	now := nowMillis()
	for k, ai := range batch {
		_, isMentioned := mentionedSet[ai.ID]
		delay := respqueue.Delay(o.rnd, respqueue.DelayParams{
			K:              k,
			IsUserResponse: isUserResponse,
			Mentioned:      isMentioned,
			TypingAICount:  typingAICount,
		})
		task := chatmodel.QueuedResponse{
			AIID:           ai.ID,
			RoomID:         roomID,
			IsUserResponse: isUserResponse,
			IsMentioned:    isMentioned,
			ScheduledTime:  now + delay.Milliseconds(),
		}
		if haveLast {
			task.TriggerMessageID = last.ID
			task.TriggerMessageSender = last.Sender
		}
		tasks = append(tasks, task)
	}
	o.queue.EnqueueBatch(tasks)
}

// weightedSampleWithoutReplacement picks count distinct records from pool,
// weighting each candidate by 1 + (now-lastMessageTime)/minute so
// least-recently-active AIs are favored, per spec §4.6 step 8.
func (o *Orchestrator) weightedSampleWithoutReplacement(pool []*chatmodel.AIRecord, count int) []*chatmodel.AIRecord {
	if count <= 0 || len(pool) == 0 {
		return nil
	}
	candidates := append([]*chatmodel.AIRecord(nil), pool...)
	out := make([]*chatmodel.AIRecord, 0, count)
	now := nowMillis()

	for len(out) < count && len(candidates) > 0 {
		weights := make([]float64, len(candidates))
		var total float64
		for i, ai := range candidates {
			w := 1 + float64(now-ai.LastMessageTime())/60000.0
			if w < 1 {
				w = 1
			}
			weights[i] = w
			total += w
		}
		r := o.rnd.Float64() * total
		var acc float64
		idx := len(candidates) - 1
		for i, w := range weights {
			acc += w
			if r < acc {
				idx = i
				break
			}
		}
		out = append(out, candidates[idx])
		candidates = append(candidates[:idx], candidates[idx+1:]...)
	}
	return out
}

// dispatchGeneration is the respqueue.Dispatch callback: the generation
// path of spec §4.6.
func (o *Orchestrator) dispatchGeneration(task chatmodel.QueuedResponse, onComplete func()) {
	ai, ok := o.registry.FindByID(task.AIID)
	if !ok || !ai.IsActive {
		onComplete()
		return
	}
	rs := o.room(task.RoomID)
	if rs.isSleeping() {
		onComplete()
		return
	}

	ai.SetGenerating(true)
	o.events.publish(OutboundEvent{Type: EventAIGeneratingStart, RoomID: task.RoomID, AIID: ai.ID})

	go o.generate(ai, rs, task, onComplete)
}

func (o *Orchestrator) generate(ai *chatmodel.AIRecord, rs *roomState, task chatmodel.QueuedResponse, onComplete func()) {
	defer func() {
		ai.SetGenerating(false)
		o.events.publish(OutboundEvent{Type: EventAIGeneratingStop, RoomID: task.RoomID, AIID: ai.ID})
		onComplete()
	}()

	context := rs.ctx.Tail(AIContext)

	decision := strategy.Select(o.rnd, ai, context, task.IsUserResponse, o.registry)

	instruction := chatmodel.ContextMessage{
		Message: chatmodel.Message{
			ID:         o.internalID(),
			Content:    strategy.InstructionSnippet(decision),
			RoomID:     task.RoomID,
			SenderType: chatmodel.SenderSystem,
		},
		IsInternal: true,
	}
	context = append(context, instruction)

	others := o.otherActiveAIs(ai, task.RoomID)
	systemPrompt := buildSystemPrompt(ai, others, task.IsUserResponse, o.cfg.Flags.EnablePersonas)
	systemMsg := chatmodel.ContextMessage{
		Message: chatmodel.Message{
			ID:         o.internalID(),
			Content:    systemPrompt,
			RoomID:     task.RoomID,
			SenderType: chatmodel.SenderSystem,
		},
		IsInternal: true,
	}
	messages := make([]chatmodel.ContextMessage, 0, len(context)+1)
	messages = append(messages, systemMsg)
	messages = append(messages, context...)

	if o.cfg.Flags.VerboseContextLogging {
		slog.Debug("orchestrator: generation context",
			"ai_id", ai.ID, "room_id", task.RoomID,
			"system_prompt", systemPrompt, "context_size", len(context))
	}

	result, err := ai.Capability.Generate(messages)
	if err != nil {
		slog.Warn("orchestrator: generation failed", "ai_id", ai.ID, "room_id", task.RoomID, "error", err)
		o.events.publish(OutboundEvent{Type: EventAIError, RoomID: task.RoomID, AIID: ai.ID, Err: err})
		if o.metrics != nil {
			o.metrics.ObserveEvent("ai-error", task.RoomID)
		}
		return
	}

	content := truncateResponse(result.Content)

	if decision.ShouldMention {
		token := mentionTargetToken(decision)
		if token != "" {
			content = strategy.AddMention(o.rnd, content, token)
		}
	}
	content = strategy.LimitMentions(content, strategy.MaxUniqueMentionsPerResponse)

	mentions := strategy.ExtractMentions(content)
	aiMsg := chatmodel.Message{
		Sender:                   ai.DisplayName,
		Content:                  content,
		RoomID:                   task.RoomID,
		SenderType:               chatmodel.SenderAI,
		AIID:                     ai.ID,
		ProviderKey:              ai.ProviderKey,
		ModelKey:                 ai.ModelKey,
		Alias:                    ai.Alias,
		NormalizedAlias:          ai.NormalizedAlias,
		Mentions:                 mentions,
		MentionsNormalized:       strategy.MentionsNormalized(mentions),
		InteractionStrategy:      string(decision.Type),
		MentionsTriggerMessageID: task.TriggerMessageID,
		MentionsTriggerSender:    task.TriggerMessageSender,
	}

	o.broker.Enqueue(aiMsg, nil)
	o.events.publish(OutboundEvent{Type: EventAIResponse, RoomID: task.RoomID, AIID: ai.ID, Message: aiMsg})
	if o.metrics != nil {
		o.metrics.ObserveEvent("ai-response", task.RoomID)
	}
}

func mentionTargetToken(d strategy.Decision) string {
	switch {
	case d.TargetIsUser:
		if d.TargetUserSender == "" {
			return ""
		}
		return "@" + d.TargetUserSender
	case d.TargetAI != nil:
		return d.TargetAI.MentionToken()
	default:
		return ""
	}
}

func (o *Orchestrator) otherActiveAIs(self *chatmodel.AIRecord, roomID string) []*chatmodel.AIRecord {
	all := o.registry.Active()
	out := make([]*chatmodel.AIRecord, 0, len(all))
	for _, ai := range all {
		if ai.ID != self.ID && o.allowList.Allowed(roomID, ai.ID) {
			out = append(out, ai)
		}
	}
	return out
}

func (o *Orchestrator) internalID() string {
	return uuid.New().String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
