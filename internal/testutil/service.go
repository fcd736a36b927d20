package testutil

import (
	"github.com/roach88/opflow/internal/metadata"
)

// OrderServiceCUE is the service definition shared by engine tests.
const OrderServiceCUE = `
operations: {
	"Orders/OrderService.approve": {
		binding: {name: "_it", type: "Orders"}
		parameters: [
			{name: "Comment", type: "string", nullable: true},
			{name: "Priority", type: "int"},
		]
		returns: {type: "Orders"}
		sideEffects: {
			triggerActions: ["OrderService.recalculate"]
			targets: ["TotalAmount"]
		}
	}
	"Orders/OrderService.release": {
		binding: {name: "_it", type: "Orders"}
		returns: {type: "Orders"}
		sideEffects: targets: ["Status"]
	}
	"Orders/OrderService.delete": {
		binding: {name: "in", type: "Orders"}
		critical: true
		parameters: [{name: "ResultIsActiveEntity", type: "bool"}]
	}
	"Orders/OrderService.cancel": {
		binding: {name: "_it", type: "Orders"}
		critical: "_it/IsLocked"
		parameters: [{name: "Reason", type: "string"}]
	}
	"OrderService.createOrder": {
		parameters: [
			{name: "Customer", type: "string"},
			{name: "Quantity", type: "int"},
		]
	}
	"Orders/OrderService.countOpen": {
		kind: "function"
		static: true
		binding: {name: "_it", type: "Orders"}
		returns: {type: "Edm.Int32"}
	}
}
`

// OrderService compiles OrderServiceCUE. It panics on a compile error, which
// can only mean the fixture itself is broken.
func OrderService() *metadata.CUEProvider {
	p, err := metadata.CompileCUE([]byte(OrderServiceCUE), "order_service.cue")
	if err != nil {
		panic("testutil: order service fixture: " + err.Error())
	}
	return p
}
