package poolroom

// Message kinds exchanged between a PoolRoom pair and the actors that own
// jobs running on their pool (spec.md §4.2). An owning actor (Reader,
// Resampler, Merger, Computer) reacts to KindTokenToWorkingRoom by building
// a Work value and sending KindLaunchJobWithToken to the WorkingRoom; it
// reacts to KindJobDone to continue its own protocol.
const (
	// KindScheduleJob carries a WaitingJob to park in the WaitingRoom.
	KindScheduleJob = "schedule_job"
	// KindUnscheduleJob removes a previously scheduled WaitingJob.
	KindUnscheduleJob = "unschedule_job"
	// KindTokenToWorkingRoom is sent by WaitingRoom to a job's owner once
	// pool capacity admits it: Args = [WaitingJob, Token].
	KindTokenToWorkingRoom = "token_to_working_room"
	// KindLaunchJobWithToken is sent by the owner to WorkingRoom once it
	// has built the runnable Work for a granted token: Args = [Work, Token].
	KindLaunchJobWithToken = "launch_job_with_token"
	// KindCancelJob tells WorkingRoom to discard a working entry's eventual
	// completion: Args = [WaitingJob].
	KindCancelJob = "cancel_job"
	// KindJobDone is sent by WorkingRoom to a job's owner on completion:
	// Args = [WaitingJob, value any, err error].
	KindJobDone = "job_done"
	// KindTokenReleased is sent by WorkingRoom back to its paired
	// WaitingRoom once a token's job has finished, freeing capacity.
	KindTokenReleased = "token_released"
)
