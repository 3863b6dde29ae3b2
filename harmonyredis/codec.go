package harmonyredis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/castaneai/harmony"
)

type fieldValue struct {
	field string
	value string
}

func encodeSnapshot(s harmony.Snapshot) []fieldValue {
	return []fieldValue{
		{redisFieldRedCount, strconv.Itoa(s.RedCount)},
		{redisFieldBlueCount, strconv.Itoa(s.BlueCount)},
		{redisFieldTablesTotal, strconv.Itoa(s.TablesTotal)},
		{redisFieldTablesFree, strconv.Itoa(s.TablesFree)},
		{redisFieldRedWaiting, strconv.Itoa(s.RedWaiting)},
		{redisFieldBlueWaiting, strconv.Itoa(s.BlueWaiting)},
		{redisFieldTableWaiting, strconv.Itoa(s.TableWaiting)},
		{redisFieldRedServed, strconv.Itoa(s.RedServed)},
		{redisFieldBlueServed, strconv.Itoa(s.BlueServed)},
	}
}

func encodeEvent(ev harmony.Event) []fieldValue {
	fvs := []fieldValue{
		{redisFieldSeq, strconv.FormatUint(ev.Seq, 10)},
		{redisFieldKind, string(ev.Kind)},
		{redisFieldTokenID, ev.TokenID},
		{redisFieldActorID, ev.Actor.ID},
		{redisFieldColor, ev.Actor.Color.String()},
		{redisFieldTable, strconv.Itoa(ev.Table)},
		{redisFieldTime, strconv.FormatInt(ev.Time.UnixNano(), 10)},
	}
	return append(fvs, encodeSnapshot(ev.Snapshot)...)
}

func decodeSnapshot(fields map[string]string) (harmony.Snapshot, error) {
	var s harmony.Snapshot
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{redisFieldRedCount, &s.RedCount},
		{redisFieldBlueCount, &s.BlueCount},
		{redisFieldTablesTotal, &s.TablesTotal},
		{redisFieldTablesFree, &s.TablesFree},
		{redisFieldRedWaiting, &s.RedWaiting},
		{redisFieldBlueWaiting, &s.BlueWaiting},
		{redisFieldTableWaiting, &s.TableWaiting},
		{redisFieldRedServed, &s.RedServed},
		{redisFieldBlueServed, &s.BlueServed},
	} {
		v, err := decodeInt(fields, f.name)
		if err != nil {
			return harmony.Snapshot{}, err
		}
		*f.dst = v
	}
	return s, nil
}

func decodeEvent(fields map[string]string) (*harmony.Event, error) {
	seqStr, ok := fields[redisFieldSeq]
	if !ok {
		return nil, fmt.Errorf("missing field '%s'", redisFieldSeq)
	}
	seq, err := strconv.ParseUint(seqStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse field '%s': %w", redisFieldSeq, err)
	}
	color, err := harmony.ParseColor(fields[redisFieldColor])
	if err != nil {
		return nil, fmt.Errorf("failed to parse field '%s': %w", redisFieldColor, err)
	}
	table, err := decodeInt(fields, redisFieldTable)
	if err != nil {
		return nil, err
	}
	timeStr, ok := fields[redisFieldTime]
	if !ok {
		return nil, fmt.Errorf("missing field '%s'", redisFieldTime)
	}
	unixNano, err := strconv.ParseInt(timeStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse field '%s': %w", redisFieldTime, err)
	}
	snapshot, err := decodeSnapshot(fields)
	if err != nil {
		return nil, err
	}
	return &harmony.Event{
		Seq:      seq,
		Kind:     harmony.EventKind(fields[redisFieldKind]),
		TokenID:  fields[redisFieldTokenID],
		Actor:    harmony.Actor{ID: fields[redisFieldActorID], Color: color},
		Table:    table,
		Snapshot: snapshot,
		Time:     time.Unix(0, unixNano),
	}, nil
}

func decodeInt(fields map[string]string, name string) (int, error) {
	s, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("missing field '%s'", name)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse field '%s': %w", name, err)
	}
	return v, nil
}
