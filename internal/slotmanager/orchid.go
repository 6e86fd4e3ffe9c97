package slotmanager

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-json"

	"github.com/scusemua/exec-node-slots/internal/alert"
)

// BuildOrchidYson renders the structured introspection document described
// in §6: slot-count, free-slot-count, used-idle-slot-count,
// idle-policy-requested-cpu, a numa-node-states submap keyed "node_<id>",
// an alerts submap keyed by kind, and an optional root-volume-manager
// summary. Submap key order is deterministic (sorted by id / enum order)
// to keep golden-style tests stable, per the specification's design note
// (§9) — even though nothing in the semantics strictly requires it. The
// name "Yson" is kept from the specification's vocabulary; each object is
// assembled as a json.RawMessage in explicit key order (ordinary
// map[string]any values have unspecified iteration order once encoded),
// then the whole document is indented via goccy/go-json, the serializer
// this codebase uses elsewhere for structured output (see
// config.SlotManagerConfig.PrettyString).
func (m *Manager) BuildOrchidYson(sink io.Writer) error {
	var slotCount, usedIdleSlotCount int
	var freeSlotCount int
	var idlePolicyRequestedCpu string

	m.queue.Submit(func() {
		slotCount = m.slotCount
		freeSlotCount = len(m.freeSlots)
		usedIdleSlotCount = m.usedIdleSlotCount
		idlePolicyRequestedCpu = m.idlePolicyRequestedCpu.String()
	})

	var states []numaStateView
	m.queue.Submit(func() {
		for _, s := range m.numaLedger.Snapshot() {
			states = append(states, numaStateView{Id: s.Info.Id, CpuSet: s.Info.CpuSet, FreeCpu: s.FreeCpu.String()})
		}
	})
	sort.Slice(states, func(i, j int) bool { return states[i].Id < states[j].Id })

	numaFields := make([]orderedField, 0, len(states))
	for _, s := range states {
		entry, err := marshalOrderedObject(
			orderedField{"free_cpu_count", s.FreeCpu},
			orderedField{"cpu_set", s.CpuSet},
		)
		if err != nil {
			return err
		}
		numaFields = append(numaFields, orderedField{fmt.Sprintf("node_%d", s.Id), entry})
	}
	numaNodeStates, err := marshalOrderedObject(numaFields...)
	if err != nil {
		return err
	}

	alertsSnapshot := m.alerts.Snapshot()
	kinds := make([]alert.Kind, 0, len(alertsSnapshot))
	for k := range alertsSnapshot {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	alertFields := make([]orderedField, 0, len(kinds))
	for _, k := range kinds {
		alertFields = append(alertFields, orderedField{k.String(), alertsSnapshot[k].Error()})
	}
	alertsObj, err := marshalOrderedObject(alertFields...)
	if err != nil {
		return err
	}

	docFields := []orderedField{
		{"slot_count", slotCount},
		{"free_slot_count", freeSlotCount},
		{"used_idle_slot_count", usedIdleSlotCount},
		{"idle_policy_requested_cpu", idlePolicyRequestedCpu},
		{"numa_node_states", numaNodeStates},
		{"alerts", alertsObj},
	}

	m.volumeMu.RLock()
	vm := m.volumeManager
	m.volumeMu.RUnlock()

	if vm != nil {
		rv, err := marshalOrderedObject(
			orderedField{"layer_count", vm.LayerCount()},
			orderedField{"cache_hit_rate", vm.CacheHitRate()},
		)
		if err != nil {
			return err
		}
		docFields = append(docFields, orderedField{"root_volume_manager", rv})
	}

	doc, err := marshalOrderedObject(docFields...)
	if err != nil {
		return err
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, doc, "", "  "); err != nil {
		return err
	}
	indented.WriteByte('\n')

	_, err = sink.Write(indented.Bytes())
	return err
}

type numaStateView struct {
	Id      int64
	CpuSet  string
	FreeCpu string
}

// orderedField is one key/value pair in a deterministically-ordered JSON
// object assembled by marshalOrderedObject. value may itself be a
// json.RawMessage produced by a previous call, letting nested objects
// splice in verbatim.
type orderedField struct {
	key   string
	value any
}

// marshalOrderedObject renders fields as a JSON object in the given order.
// A plain map[string]any would encode with an unspecified key order once
// marshaled; building the object's bytes directly is what guarantees the
// deterministic key order §9 asks for.
func marshalOrderedObject(fields ...orderedField) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		if raw, ok := f.value.(json.RawMessage); ok {
			buf.Write(raw)
			continue
		}

		valBytes, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return json.RawMessage(buf.Bytes()), nil
}
