package router

import (
	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-modrouter/pkg/interfaces"
	"github.com/dep2p/go-modrouter/pkg/types"
)

// emitters 生命周期事件发射器，事件总线为 nil 时全部为 nil
type emitters struct {
	registered     pkgif.Emitter
	unregistered   pkgif.Emitter
	settled        pkgif.Emitter
	deliveryFailed pkgif.Emitter
}

func newEmitters(bus pkgif.EventBus) (*emitters, error) {
	e := &emitters{}
	if bus == nil {
		return e, nil
	}

	var err error
	if e.registered, err = bus.Emitter(new(types.EvtModuleRegistered)); err != nil {
		return nil, err
	}
	if e.unregistered, err = bus.Emitter(new(types.EvtModuleUnregistered)); err != nil {
		return nil, err
	}
	if e.settled, err = bus.Emitter(new(types.EvtRequestSettled)); err != nil {
		return nil, err
	}
	if e.deliveryFailed, err = bus.Emitter(new(types.EvtDeliveryFailed)); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *emitters) emit(em pkgif.Emitter, evt any) {
	if em == nil {
		return
	}
	if err := em.Emit(evt); err != nil {
		logger.Debug("发布事件失败", "error", err)
	}
}

// Close 关闭所有发射器
func (e *emitters) Close() error {
	var err error
	for _, em := range []pkgif.Emitter{e.registered, e.unregistered, e.settled, e.deliveryFailed} {
		if em != nil {
			err = multierr.Append(err, em.Close())
		}
	}
	return err
}
