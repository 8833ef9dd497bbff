package domain

// Observer receives workspace notifications. Calls are synchronous and happen
// only after the triggering operation has committed; an observer must not
// call back into the workspace that notified it.
type Observer interface {
	OnAdd(h Handle, t TypeID)
	OnRemove(h Handle, t TypeID)
	OnChange(h Handle)
}

// ObserverFuncs adapts optional closures to Observer.
type ObserverFuncs struct {
	Add    func(Handle, TypeID)
	Remove func(Handle, TypeID)
	Change func(Handle)
}

// OnAdd implements Observer.
func (o ObserverFuncs) OnAdd(h Handle, t TypeID) {
	if o.Add != nil {
		o.Add(h, t)
	}
}

// OnRemove implements Observer.
func (o ObserverFuncs) OnRemove(h Handle, t TypeID) {
	if o.Remove != nil {
		o.Remove(h, t)
	}
}

// OnChange implements Observer.
func (o ObserverFuncs) OnChange(h Handle) {
	if o.Change != nil {
		o.Change(h)
	}
}
