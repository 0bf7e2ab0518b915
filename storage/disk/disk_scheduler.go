package disk

import "sync"

// DiskScheduler funnels page I/O through one worker goroutine per PageID so
// requests against the same page are strictly ordered while requests
// against different pages proceed concurrently. From the buffer pool's
// point of view a Schedule call is synchronous: the caller blocks on the
// response channel it gets back.
type DiskScheduler struct {
	reqCh       chan Req
	diskManager *DiskManager

	pageQueue   map[PageID]chan Req
	pageQueueMu sync.Mutex
}

type Req struct {
	PageID PageID
	Data   []byte
	Write  bool
	RespCh chan Resp
}

type Resp struct {
	Success bool
	Data    []byte
	Err     error
}

func NewScheduler(dm *DiskManager) *DiskScheduler {
	ds := &DiskScheduler{
		reqCh:       make(chan Req, 100),
		pageQueue:   make(map[PageID]chan Req),
		diskManager: dm,
	}
	go ds.dispatch()
	return ds
}

// NewReadRequest and NewWriteRequest build a Req with a fresh response
// channel, honoring the requested direction (the teacher's equivalent
// constructor hardcoded Write to false regardless of the caller's intent).
func NewReadRequest(id PageID) Req {
	return Req{PageID: id, RespCh: make(chan Resp, 1)}
}

func NewWriteRequest(id PageID, data []byte) Req {
	return Req{PageID: id, Data: data, Write: true, RespCh: make(chan Resp, 1)}
}

func (ds *DiskScheduler) Schedule(req Req) <-chan Resp {
	ds.reqCh <- req
	return req.RespCh
}

func (ds *DiskScheduler) dispatch() {
	for req := range ds.reqCh {
		ds.pageQueueMu.Lock()
		queue, ok := ds.pageQueue[req.PageID]
		if !ok {
			queue = make(chan Req, 16)
			ds.pageQueue[req.PageID] = queue
		}
		ds.pageQueueMu.Unlock()

		queue <- req

		if !ok {
			go ds.pageWorker(req.PageID, queue)
		}
	}
}

func (ds *DiskScheduler) pageWorker(id PageID, queue chan Req) {
	for {
		select {
		case req := <-queue:
			if req.Write {
				if err := ds.diskManager.WritePage(req.PageID, req.Data); err != nil {
					req.RespCh <- Resp{Success: false, Err: err}
				} else {
					req.RespCh <- Resp{Success: true}
				}
			} else {
				data, err := ds.diskManager.ReadPage(req.PageID)
				if err != nil {
					req.RespCh <- Resp{Success: false, Err: err}
				} else {
					req.RespCh <- Resp{Success: true, Data: data}
				}
			}

		default:
			ds.pageQueueMu.Lock()
			delete(ds.pageQueue, id)
			ds.pageQueueMu.Unlock()
			return
		}
	}
}
