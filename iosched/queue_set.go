package iosched

// handle indexes a node in the queue set's arena.
type handle int32

const nilHandle handle = -1

type node struct {
	req        *Request
	class      Class
	prev, next handle
}

type fifo struct {
	head, tail handle
	len        int
}

// ClassifiedQueueSet holds one FIFO per class. Nodes live in a single arena and are linked
// by handle; freed nodes are recycled. Position and class of a queued request are found
// through index, so a Request carries no queue state of its own.
type ClassifiedQueueSet struct {
	nodes []node
	free  []handle
	fifos [NumClasses]fifo
	index map[*Request]handle
}

func NewClassifiedQueueSet() *ClassifiedQueueSet {
	qs := &ClassifiedQueueSet{index: map[*Request]handle{}}
	for c := range qs.fifos {
		qs.fifos[c] = fifo{head: nilHandle, tail: nilHandle}
	}
	return qs
}

// Enqueue appends req to the tail of class's queue.
func (qs *ClassifiedQueueSet) Enqueue(class Class, req *Request) {
	if class < 0 || class >= NumClasses {
		violation("Enqueue", "invalid class %d", int(class))
	}
	if _, ok := qs.index[req]; ok {
		violation("Enqueue", "request %v is already queued", req)
	}
	h := qs.alloc(req, class)
	f := &qs.fifos[class]
	n := &qs.nodes[h]
	n.prev = f.tail
	if f.tail != nilHandle {
		qs.nodes[f.tail].next = h
	} else {
		f.head = h
	}
	f.tail = h
	f.len++
	qs.index[req] = h
}

// DequeueHead removes and returns the oldest request of class, or false when it has none.
func (qs *ClassifiedQueueSet) DequeueHead(class Class) (*Request, bool) {
	h := qs.fifos[class].head
	if h == nilHandle {
		return nil, false
	}
	req := qs.nodes[h].req
	qs.unlink(h)
	return req, true
}

// Remove takes req out of whatever queue holds it.
func (qs *ClassifiedQueueSet) Remove(req *Request) {
	qs.unlink(qs.lookup("Remove", req))
}

// Predecessor returns the request queued just before req in the same class, or nil.
func (qs *ClassifiedQueueSet) Predecessor(req *Request) *Request {
	h := qs.nodes[qs.lookup("Predecessor", req)].prev
	if h == nilHandle {
		return nil
	}
	return qs.nodes[h].req
}

// Successor returns the request queued just after req in the same class, or nil.
func (qs *ClassifiedQueueSet) Successor(req *Request) *Request {
	h := qs.nodes[qs.lookup("Successor", req)].next
	if h == nilHandle {
		return nil
	}
	return qs.nodes[h].req
}

func (qs *ClassifiedQueueSet) IsEmpty(class Class) bool {
	return qs.fifos[class].head == nilHandle
}

func (qs *ClassifiedQueueSet) Len(class Class) int {
	return qs.fifos[class].len
}

// Contains reports whether req is queued here.
func (qs *ClassifiedQueueSet) Contains(req *Request) bool {
	_, ok := qs.index[req]
	return ok
}

// ClassOf returns the queue req sits in.
func (qs *ClassifiedQueueSet) ClassOf(req *Request) Class {
	return qs.nodes[qs.lookup("ClassOf", req)].class
}

// Each walks class's queue from head to tail until fn returns false.
func (qs *ClassifiedQueueSet) Each(class Class, fn func(*Request) bool) {
	for h := qs.fifos[class].head; h != nilHandle; h = qs.nodes[h].next {
		if !fn(qs.nodes[h].req) {
			return
		}
	}
}

func (qs *ClassifiedQueueSet) lookup(op string, req *Request) handle {
	h, ok := qs.index[req]
	if !ok {
		violation(op, "request %v is not queued", req)
	}
	return h
}

func (qs *ClassifiedQueueSet) alloc(req *Request, class Class) handle {
	n := node{req: req, class: class, prev: nilHandle, next: nilHandle}
	if l := len(qs.free); l > 0 {
		h := qs.free[l-1]
		qs.free = qs.free[:l-1]
		qs.nodes[h] = n
		return h
	}
	qs.nodes = append(qs.nodes, n)
	return handle(len(qs.nodes) - 1)
}

func (qs *ClassifiedQueueSet) unlink(h handle) {
	n := &qs.nodes[h]
	f := &qs.fifos[n.class]
	if n.prev != nilHandle {
		qs.nodes[n.prev].next = n.next
	} else {
		f.head = n.next
	}
	if n.next != nilHandle {
		qs.nodes[n.next].prev = n.prev
	} else {
		f.tail = n.prev
	}
	f.len--
	delete(qs.index, n.req)
	*n = node{prev: nilHandle, next: nilHandle}
	qs.free = append(qs.free, h)
}
