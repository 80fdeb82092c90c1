package service

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"medrunner-portal/internal/event"
	"medrunner-portal/internal/model"
)

// Publisher turns domain changes into hub invocations on the bus.
type Publisher struct {
	bus event.Bus
}

func NewPublisher(bus event.Bus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) Invoke(topic string, target string, args ...any) error {
	if p == nil || p.bus == nil {
		return nil
	}

	encoded := make([]json.RawMessage, 0, len(args))
	for _, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return fmt.Errorf("encode %s argument: %w", target, err)
		}
		encoded = append(encoded, raw)
	}

	p.bus.Publish(event.New(event.TypeHubInvocation, model.HubMessage{
		Topic: topic,
		Frame: model.Frame{Type: model.FrameInvocation, Target: target, Arguments: encoded},
	}))
	slog.Debug("hub invocation published", "topic", topic, "target", target)
	return nil
}

// personUpdated notifies the person's own connections. Failures are logged;
// the change itself already succeeded.
func (p *Publisher) personUpdated(person model.Person) {
	if err := p.Invoke(model.TopicPerson(person.ID), model.TargetPersonUpdate, person); err != nil {
		slog.Warn("publish person update failed", "person_id", person.ID, "error", err)
	}
}

func (p *Publisher) emergencyUpdated(e model.Emergency) {
	if err := p.Invoke(model.TopicEmergencies(e.ClientID), model.TargetEmergencyUpdate, e); err != nil {
		slog.Warn("publish emergency update failed", "emergency_id", e.ID, "error", err)
	}
}
