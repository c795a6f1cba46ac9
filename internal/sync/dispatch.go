package sync

import (
	"context"
	"fmt"

	"github.com/vitanapos/vitana/internal/types"
)

// dispatchKey selects the gateway operation for a queue item.
type dispatchKey struct {
	Type   types.RecordType
	Action types.Action
}

// gatewayOp replays one queue item through the remote.
type gatewayOp func(ctx context.Context, r Remote, item types.QueueItem) error

func opCreate(ctx context.Context, r Remote, item types.QueueItem) error {
	return r.Create(ctx, item.Type, item.Data)
}

func opUpdate(ctx context.Context, r Remote, item types.QueueItem) error {
	return r.Update(ctx, item.Type, item.ID, item.Data)
}

func opDelete(ctx context.Context, r Remote, item types.QueueItem) error {
	return r.Delete(ctx, item.Type, item.ID)
}

// dispatch maps {type, action} pairs onto gateway operations. Adding a
// record type is a table entry here, not edits across the engine.
// Combinations absent from the table (a sale update, a settings delete)
// have no backend endpoint and fail without consuming the network.
var dispatch = map[dispatchKey]gatewayOp{
	{types.TypeProducts, types.ActionCreate}: opCreate,
	{types.TypeProducts, types.ActionUpdate}: opUpdate,
	{types.TypeProducts, types.ActionDelete}: opDelete,

	{types.TypeSales, types.ActionCreate}: opCreate,

	{types.TypeSettings, types.ActionCreate}: opCreate,
	{types.TypeSettings, types.ActionUpdate}: opUpdate,

	{types.TypeMovements, types.ActionCreate}: opCreate,
}

// dispatchItem routes a queue item to its gateway operation.
func (e *Engine) dispatchItem(ctx context.Context, item types.QueueItem) error {
	op, ok := dispatch[dispatchKey{item.Type, item.Action}]
	if !ok {
		return fmt.Errorf("unsupported mutation %s/%s", item.Type, item.Action)
	}
	return op(ctx, e.remote, item)
}
