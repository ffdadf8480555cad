// Package serviceapi implements the Service API Bridge: dispatch of a
// routed run_service_api_method call to a named method on a named
// service (compute, network, volume), resolving an instance UUID
// argument into a full instance record for compute calls, mirroring
// manager.run_service_api_method.
package serviceapi

import (
	"context"
	"fmt"

	"github.com/opd-ai/go-cells/pkg/catalog"
	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/logger"
)

// Method serves one method of one named service API.
type Method func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// computeServiceName is the one service whose first argument is always
// an instance UUID that the Bridge resolves before dispatch.
const computeServiceName = "compute"

// Bridge is the Service API Bridge for a single cell.
type Bridge struct {
	catalog  catalog.Catalog
	services map[string]map[string]Method
	log      *logger.Logger
}

// New builds a Service API Bridge. services maps a service name
// ("compute", "network", "volume") to its named methods.
func New(cat catalog.Catalog, services map[string]map[string]Method, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.NewDefault()
	}
	if services == nil {
		services = make(map[string]map[string]Method)
	}
	return &Bridge{catalog: cat, services: services, log: log.Component("serviceapi")}
}

// HandleRunServiceAPIMethod is wired in as the Router Core's handler for
// the "run_service_api_method" method. args carries "serviceName",
// "method" and "methodArgs", matching the service_name/method_info shape
// the original RPC call used.
func (b *Bridge) HandleRunServiceAPIMethod(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	serviceName, _ := args["serviceName"].(string)
	methodName, _ := args["method"].(string)
	methodArgs, _ := args["methodArgs"].(map[string]interface{})
	if methodArgs == nil {
		methodArgs = make(map[string]interface{})
	}

	svc, ok := b.services[serviceName]
	if !ok {
		return nil, cellerrors.ServiceAPIMethodNotFound(fmt.Sprintf("unknown service API: %q", serviceName))
	}
	fn, ok := svc[methodName]
	if !ok {
		return nil, cellerrors.ServiceAPIMethodNotFound(
			fmt.Sprintf("unknown method %q in %q API", methodName, serviceName))
	}

	if serviceName == computeServiceName {
		resolved, err := b.resolveInstance(ctx, methodArgs)
		if err != nil {
			return nil, err
		}
		methodArgs = resolved
	}

	return fn(ctx, methodArgs)
}

// resolveInstance adds the full instance record fetched from the Catalog
// for an "instanceUuid" argument under the "instance" key, keeping
// "instanceUuid" as well, the same turn the original performs via
// db.instance_get_by_uuid before invoking the compute API.
func (b *Bridge) resolveInstance(ctx context.Context, methodArgs map[string]interface{}) (map[string]interface{}, error) {
	instanceUUID, _ := methodArgs["instanceUuid"].(string)
	if instanceUUID == "" {
		return methodArgs, nil
	}
	instance, err := b.catalog.InstanceGetByUUID(ctx, instanceUUID)
	if err != nil {
		return nil, cellerrors.CatalogError(fmt.Sprintf("failed to resolve instance %q", instanceUUID), err)
	}
	out := make(map[string]interface{}, len(methodArgs)+1)
	for k, v := range methodArgs {
		out[k] = v
	}
	out["instance"] = instance
	return out, nil
}
