package testutil

import (
	"context"
	"sync"

	"github.com/roach88/opflow/internal/ir"
)

// PresentedList is one PresentMessageList call.
type PresentedList struct {
	Messages []ir.Message
	Options  ir.MessageListOptions
}

// ScriptedDialogs answers dialogs from queues. An exhausted parameter queue
// dismisses the dialog; an exhausted confirmation queue declines.
//
// Thread-safety: safe for concurrent use.
type ScriptedDialogs struct {
	mu               sync.Mutex
	parameterAnswers []ir.DialogResult
	confirmAnswers   []bool

	parameterDialogs []ir.ParameterDialogRequest
	confirmations    []ir.ConfirmationRequest
	lists            []PresentedList
}

// NewScriptedDialogs creates a host with no scripted answers.
func NewScriptedDialogs() *ScriptedDialogs {
	return &ScriptedDialogs{}
}

// AnswerParameters queues parameter dialog answers.
func (d *ScriptedDialogs) AnswerParameters(answers ...ir.DialogResult) *ScriptedDialogs {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.parameterAnswers = append(d.parameterAnswers, answers...)
	return d
}

// AnswerConfirmations queues yes/no answers.
func (d *ScriptedDialogs) AnswerConfirmations(answers ...bool) *ScriptedDialogs {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.confirmAnswers = append(d.confirmAnswers, answers...)
	return d
}

// PresentParameterDialog implements params.Dialogs.
func (d *ScriptedDialogs) PresentParameterDialog(_ context.Context, req ir.ParameterDialogRequest) (ir.DialogResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.parameterDialogs = append(d.parameterDialogs, req)
	if len(d.parameterAnswers) == 0 {
		return ir.DialogResult{Confirmed: false}, nil
	}
	ans := d.parameterAnswers[0]
	d.parameterAnswers = d.parameterAnswers[1:]
	return ans, nil
}

// PresentConfirmation implements params.Dialogs.
func (d *ScriptedDialogs) PresentConfirmation(_ context.Context, req ir.ConfirmationRequest) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.confirmations = append(d.confirmations, req)
	if len(d.confirmAnswers) == 0 {
		return false, nil
	}
	ans := d.confirmAnswers[0]
	d.confirmAnswers = d.confirmAnswers[1:]
	return ans, nil
}

// PresentMessageList implements engine.DialogHost.
func (d *ScriptedDialogs) PresentMessageList(_ context.Context, msgs []ir.Message, opts ir.MessageListOptions) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lists = append(d.lists, PresentedList{Messages: append([]ir.Message(nil), msgs...), Options: opts})
}

// ParameterDialogs returns every parameter dialog request.
func (d *ScriptedDialogs) ParameterDialogs() []ir.ParameterDialogRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ir.ParameterDialogRequest(nil), d.parameterDialogs...)
}

// Confirmations returns every confirmation request.
func (d *ScriptedDialogs) Confirmations() []ir.ConfirmationRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ir.ConfirmationRequest(nil), d.confirmations...)
}

// MessageLists returns every presented message list.
func (d *ScriptedDialogs) MessageLists() []PresentedList {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PresentedList(nil), d.lists...)
}
