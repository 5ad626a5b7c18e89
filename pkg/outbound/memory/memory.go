// Package memory provides in-process collaborators for local runs and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dukex/rentflow/pkg/config"
	"github.com/dukex/rentflow/pkg/protocol"
	"github.com/google/uuid"
)

// ErrRecordNotAllowed indicates an update outside the configured allow-list.
var ErrRecordNotAllowed = errors.New("record update not allowed")

// Collaborators implements every protocol collaborator and keeps what it
// receives for inspection.
type Collaborators struct {
	mu sync.RWMutex

	allowList     config.RecordAllowList
	notifications map[string]protocol.Notification
	tasks         map[string]protocol.Task
	incidents     map[string]protocol.Incident
	mail          []protocol.Mail
	records       map[string]map[string]map[string]any
}

// New returns empty collaborators. Record updates are limited to allowList;
// a nil allowList denies every update.
func New(allowList config.RecordAllowList) *Collaborators {
	return &Collaborators{
		allowList:     allowList,
		notifications: make(map[string]protocol.Notification),
		tasks:         make(map[string]protocol.Task),
		incidents:     make(map[string]protocol.Incident),
		records:       make(map[string]map[string]map[string]any),
	}
}

func (c *Collaborators) CreateNotification(_ context.Context, notification protocol.Notification) (string, error) {
	id := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifications[id] = notification

	return id, nil
}

func (c *Collaborators) CreateTask(_ context.Context, task protocol.Task) (string, error) {
	id := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tasks[id] = task

	return id, nil
}

func (c *Collaborators) SendMail(_ context.Context, mail protocol.Mail) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mail = append(c.mail, mail)

	return nil
}

func (c *Collaborators) UpdateField(_ context.Context, update protocol.RecordUpdate) error {
	if _, ok := c.allowList.Lookup(update.EntityType, update.Field); !ok {
		return fmt.Errorf("%w: %s.%s", ErrRecordNotAllowed, update.EntityType, update.Field)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entities, ok := c.records[update.EntityType]
	if !ok {
		entities = make(map[string]map[string]any)
		c.records[update.EntityType] = entities
	}

	fields, ok := entities[update.EntityID]
	if !ok {
		fields = make(map[string]any)
		entities[update.EntityID] = fields
	}

	fields[update.Field] = update.Value

	return nil
}

func (c *Collaborators) CreateIncident(_ context.Context, incident protocol.Incident) (string, error) {
	id := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.incidents[id] = incident

	return id, nil
}

// Notification returns the notification stored under id.
func (c *Collaborators) Notification(id string) (protocol.Notification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	notification, ok := c.notifications[id]

	return notification, ok
}

func (c *Collaborators) Task(id string) (protocol.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	task, ok := c.tasks[id]

	return task, ok
}

func (c *Collaborators) Incident(id string) (protocol.Incident, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	incident, ok := c.incidents[id]

	return incident, ok
}

// Mail returns a copy of every mail sent so far, in order.
func (c *Collaborators) Mail() []protocol.Mail {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]protocol.Mail(nil), c.mail...)
}

// Field returns the last value written to entityType/entityID/field.
func (c *Collaborators) Field(entityType, entityID, field string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.records[entityType][entityID][field]

	return value, ok
}
