package cloudbus

import (
	"context"
	"testing"
)

func TestFakeBusPublishNotifiesSubscribers(t *testing.T) {
	b := NewFakeBus()
	var got Message
	b.Subscribe("tag_values", func(channel string, tree Message) {
		if channel != "tag_values" {
			t.Errorf("channel = %q, want tag_values", channel)
		}
		got = tree
	})

	want := Message{"a": 1.0}
	if err := b.Publish(context.Background(), "tag_values", want, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got["a"] != 1.0 {
		t.Errorf("subscriber saw %v, want %v", got, want)
	}
}

func TestFakeBusGetAggregate(t *testing.T) {
	b := NewFakeBus()
	if msg, err := b.GetAggregate(context.Background(), "tag_values"); err != nil || msg != nil {
		t.Errorf("GetAggregate() on empty channel = %v, %v, want nil, nil", msg, err)
	}

	b.Seed("tag_values", Message{"TEST": true})
	msg, err := b.GetAggregate(context.Background(), "tag_values")
	if err != nil {
		t.Fatalf("GetAggregate() error = %v", err)
	}
	if msg["TEST"] != true {
		t.Errorf("GetAggregate() = %v, want TEST:true", msg)
	}
}

func TestFakeBusPublishMergesRatherThanReplaces(t *testing.T) {
	b := NewFakeBus()
	b.Seed("tag_values", Message{"sim_generator__temperature": 21.5, "sim_generator__pressure": 1.0})

	var got Message
	b.Subscribe("tag_values", func(channel string, tree Message) {
		got = tree
	})

	if err := b.Publish(context.Background(), "tag_values", Message{"global_value": 9.0}, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for _, key := range []string{"sim_generator__temperature", "sim_generator__pressure", "global_value"} {
		if _, ok := got[key]; !ok {
			t.Errorf("merged aggregate missing %q: %v", key, got)
		}
	}

	agg, err := b.GetAggregate(context.Background(), "tag_values")
	if err != nil {
		t.Fatalf("GetAggregate() error = %v", err)
	}
	for _, key := range []string{"sim_generator__temperature", "sim_generator__pressure", "global_value"} {
		if _, ok := agg[key]; !ok {
			t.Errorf("stored aggregate missing %q: %v", key, agg)
		}
	}
}

func TestFakeBusSeedDoesNotNotify(t *testing.T) {
	b := NewFakeBus()
	called := false
	b.Subscribe("tag_values", func(string, Message) { called = true })
	b.Seed("tag_values", Message{"a": 1.0})
	if called {
		t.Error("Seed should not notify subscribers")
	}
}
