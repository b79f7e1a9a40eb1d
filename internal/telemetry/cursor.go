package telemetry

import "context"

// StepCursor is implemented by anything that knows which step the user is
// on. It replaces poking at a step controller's internals.
type StepCursor interface {
	CurrentStepIndex() int
	CurrentStepGUID() string
	CurrentStepKind() string
}

// QueueCursorEvent queues a step event whose step fields come from
// cursor. A nil cursor queues the event without step fields.
func (p *Pipeline) QueueCursorEvent(ctx context.Context, cursor StepCursor, eventType, action string) bool {
	in := StepInput{
		EventType: eventType,
		Action:    action,
	}
	if cursor != nil {
		idx := cursor.CurrentStepIndex()
		in.StepIndex = &idx
		in.StepID = cursor.CurrentStepGUID()
		in.StepKind = cursor.CurrentStepKind()
	}
	return p.QueueStepEvent(ctx, in)
}
