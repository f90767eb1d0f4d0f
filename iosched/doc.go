/*
package iosched provides DispatchScheduler, a per-device I/O request scheduler that batches
requests of the same class and keeps writes from being starved by reads.

* Concepts *
Class:
  Read        every read request, sync or not.
  SyncWrite   writes whose submitter waits for completion.
  AsyncWrite  background writes (writeback).

Batch:
  A run of consecutive dispatches from one class. A batch ends when the class has dispatched
  its batch limit or its queue runs dry.

Starvation counter:
  Per write class. Counts how many times the class had pending work while another class was
  selected. Reset when the class itself is selected.

* Logic *
Each Dispatch:
  Phase A: keep the active class unless its batch is used up or its queue is empty.
  Phase B: pick a new active class. Reads win by default, but a write class whose starvation
           counter is above its threshold is forced in. SyncWrite is checked before AsyncWrite,
           and AsyncWrite can still preempt a forced SyncWrite when it is starved too.
  Phase C: pop the head of the active class.

* Tunables *
  read-batch-limit               8   [1, 65535]
  sync-write-batch-limit         4   [1, 65535]
  async-write-batch-limit        4   [1, 65535]
  sync-write-starved-threshold   1   [0, 65535]
  async-write-starved-threshold  5   [1, 65535]
Out of range values are clamped, never rejected.

A DispatchScheduler is not safe for concurrent use. The owner (see package elevator)
serializes every call.
*/
package iosched
