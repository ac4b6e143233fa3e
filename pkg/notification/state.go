package notification

import (
	"context"

	"greenbot/pkg/state"
)

func (n *Notification) stateKey() (string, error) {
	if n.store == nil {
		return "", ErrNoStore
	}
	sender, ok := n.Sender()
	if !ok {
		return "", ErrNoSender
	}
	return sender, nil
}

// State returns the sender's conversation state. Events without a sender
// have no state.
func (n *Notification) State(ctx context.Context) (*state.State, bool, error) {
	sender, err := n.stateKey()
	if err == ErrNoSender {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return n.store.Get(ctx, sender)
}

func (n *Notification) SetState(ctx context.Context, name string) error {
	sender, err := n.stateKey()
	if err != nil {
		return err
	}
	return n.store.Set(ctx, sender, name)
}

func (n *Notification) UpdateState(ctx context.Context, name string) error {
	sender, err := n.stateKey()
	if err != nil {
		return err
	}
	return n.store.Update(ctx, sender, name)
}

func (n *Notification) DeleteState(ctx context.Context) error {
	sender, err := n.stateKey()
	if err != nil {
		return err
	}
	return n.store.Delete(ctx, sender)
}

func (n *Notification) StateData(ctx context.Context) (map[string]any, bool, error) {
	sender, err := n.stateKey()
	if err == ErrNoSender {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return n.store.GetData(ctx, sender)
}

func (n *Notification) SetStateData(ctx context.Context, data map[string]any) error {
	sender, err := n.stateKey()
	if err != nil {
		return err
	}
	return n.store.SetData(ctx, sender, data)
}

func (n *Notification) UpdateStateData(ctx context.Context, data map[string]any) error {
	sender, err := n.stateKey()
	if err != nil {
		return err
	}
	return n.store.UpdateData(ctx, sender, data)
}

func (n *Notification) DeleteStateData(ctx context.Context) error {
	sender, err := n.stateKey()
	if err != nil {
		return err
	}
	return n.store.DeleteData(ctx, sender)
}
