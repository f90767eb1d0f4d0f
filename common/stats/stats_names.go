package stats

/*
This file defines all the metrics being collected. Per-class stats get the class name
(read, sync_write, async_write) as a trailing name element, e.g. "dispatchCounter/read".
*/

const (
	/************************* iosched metrics **************************/
	/*
		number of requests handed out by Dispatch, per class
	*/
	IOSchedDispatchCounter = "dispatchCounter"

	/*
		number of Dispatch calls that found every queue empty
	*/
	IOSchedEmptyDispatchCounter = "emptyDispatchCounter"

	/*
		number of times a class was (re)selected as the active class, per class
	*/
	IOSchedBatchStartCounter = "batchStartCounter"

	/*
		number of times a write class was force-selected because its starvation
		counter passed its threshold, per class
	*/
	IOSchedStarvationOverrideCounter = "starvationOverrideCounter"

	/*
		number of requests removed from a queue because the host merged them
	*/
	IOSchedMergeCounter = "mergeCounter"

	/*
		number of requests waiting in each class queue
	*/
	IOSchedQueueDepthGauge = "queueDepthGauge"

	/*
		number of times a tunable was changed
	*/
	IOSchedTunableSetCounter = "tunableSetCounter"

	/************************* Driver metrics **************************/
	/*
		number of requests handed to the transport
	*/
	DriverSubmitCounter = "submitCounter"

	/*
		number of transport submissions that returned an error
	*/
	DriverSubmitErrCounter = "submitErrCounter"

	/*
		time spent in Transport.Submit
	*/
	DriverSubmitLatency_ms = "submitLatency_ms"

	/*
		number of times the driver found nothing to dispatch and backed off
	*/
	DriverIdleWaitCounter = "idleWaitCounter"

	/************************* Admin endpoint metrics **************************/
	/*
		number of tunable reads and writes served over http
	*/
	AdminTunableGetCounter = "tunableGetCounter"
	AdminTunableSetCounter = "tunableSetCounter"

	/*
		number of rejected admin requests (unknown device/tunable, bad method)
	*/
	AdminBadRequestCounter = "badRequestCounter"

	/*
		number of trace operations (adds and merges) admitted over http
	*/
	AdminAdmittedCounter = "admittedCounter"
)
