package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishRoutesByEmployee(t *testing.T) {
	hub := NewHub()

	mine, cleanupMine := hub.Subscribe("emp_1")
	defer cleanupMine()
	other, cleanupOther := hub.Subscribe("emp_2")
	defer cleanupOther()
	all, cleanupAll := hub.Subscribe(AllEmployees)
	defer cleanupAll()

	hub.Publish(Event{EmployeeID: "emp_1", Event: "attendance.clocked_in"})

	require.Len(t, mine, 1)
	assert.Equal(t, "attendance.clocked_in", (<-mine).Event)
	require.Len(t, all, 1)
	assert.Equal(t, "emp_1", (<-all).EmployeeID)
	assert.Len(t, other, 0)
}

func TestHub_FullBufferDropsEvents(t *testing.T) {
	hub := NewHub()
	ch, cleanup := hub.Subscribe("emp_1")
	defer cleanup()

	for i := 0; i < hub.buffer+5; i++ {
		hub.Publish(Event{EmployeeID: "emp_1", Event: "tick"})
	}
	assert.Len(t, ch, hub.buffer)
}

func TestHub_Cleanup(t *testing.T) {
	hub := NewHub()
	ch, cleanup := hub.Subscribe("emp_1")
	_, cleanupAll := hub.Subscribe(AllEmployees)
	assert.Equal(t, 1, hub.SubscriberCount("emp_1"))
	assert.Equal(t, 2, hub.TotalSubscribers())

	cleanup()
	cleanup() // idempotent
	cleanupAll()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount("emp_1"))
	assert.Equal(t, 0, hub.TotalSubscribers())

	hub.Publish(Event{EmployeeID: "emp_1"})
}
