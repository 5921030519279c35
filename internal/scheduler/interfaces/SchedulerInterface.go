package interfaces

type SchedulerInterface interface {
	Init() error
	Stop()
	Restore() error
	Trigger(job string) error
}
