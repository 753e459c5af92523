package api

import (
	"context"
	"fmt"

	"github.com/ruteri/envelope-registry/algorithms"
	"github.com/ruteri/envelope-registry/interfaces"
)

// Node is everything a transport serves: the keeper locally, or a client
// for a remote node.
type Node interface {
	interfaces.MsgServer
	interfaces.QueryServer
}

// LoadAlgorithms fetches the params and algorithm catalog of a node and
// returns a local registry over them, so envelopes can be built and opened
// without further round trips for algorithm lookups.
func LoadAlgorithms(ctx context.Context, q interfaces.QueryServer) (*algorithms.Registry, interfaces.Params, error) {
	params, err := q.QueryParams(ctx, &interfaces.QueryParamsRequest{})
	if err != nil {
		return nil, interfaces.Params{}, fmt.Errorf("could not fetch params: %w", err)
	}
	algs, err := q.QueryAlgorithms(ctx, &interfaces.QueryAlgorithmsRequest{})
	if err != nil {
		return nil, interfaces.Params{}, fmt.Errorf("could not fetch algorithms: %w", err)
	}
	registry, err := algorithms.NewRegistry(interfaces.FixedParams(params.Params), algs.Algorithms...)
	if err != nil {
		return nil, interfaces.Params{}, err
	}
	return registry, params.Params, nil
}
