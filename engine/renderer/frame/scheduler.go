// package frame drives the per-frame command buffer lifecycle: swapchain acquisition, recording,
// submission and presentation over a fixed ring of frame slots.
package frame

import (
	"errors"
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"go.uber.org/zap"
)

// DefaultFramesInFlight is the ring size used when NewScheduler is given a non-positive count.
const DefaultFramesInFlight = 2

// ErrFatal wraps errors the scheduler cannot recover from, such as a lost device or a failed submit.
var ErrFatal = errors.New("fatal frame error")

// Slot is one entry of the frame ring.
type Slot struct {
	CommandBuffer gpu.CommandBuffer
	// PresentSemaphore is signalled when the acquired image is ready to be rendered to.
	PresentSemaphore gpu.Semaphore
	// RenderSemaphore is signalled when the frame's submission finished and the image can be presented.
	RenderSemaphore gpu.Semaphore
}

// ResizeHook is invoked after the swapchain was recreated, before any further submission.
type ResizeHook func(extent gpu.Extent, imageCount int) error

// scheduler is the implementation of the Scheduler interface.
type scheduler struct {
	device       gpu.Device
	logger       *zap.Logger
	extentSource func() gpu.Extent

	slots    []Slot
	index    int
	upload   gpu.CommandBuffer
	hooks    []ResizeHook
	inFrame  bool
	recreate int
}

// Scheduler defines the interface for the frame scheduler.
//
// A Scheduler owns F frame slots and rotates through them: StartRender acquires a swapchain image and
// opens the current slot's command buffer, EndRender submits it and presents, then advances the ring.
// Out-of-date and suboptimal swapchains are recreated transparently and the affected frame is dropped.
type Scheduler interface {
	// StartRender resets the current slot's command buffer, which waits for its previous submission,
	// acquires the next swapchain image with the slot's present semaphore and begins recording.
	//
	// Returns:
	//   - uint32: the acquired swapchain image index
	//   - bool: false when the swapchain was recreated or is empty and the caller must skip this frame
	//   - error: an error wrapping ErrFatal when rendering cannot continue
	StartRender() (uint32, bool, error)

	// EndRender ends and submits the current command buffer, waiting on the present semaphore at the
	// colour output stage and signalling the render semaphore, then presents the image and advances the
	// ring to the next slot.
	//
	// Parameters:
	//   - imageIndex: the image index returned by StartRender
	//
	// Returns:
	//   - error: an error wrapping ErrFatal when submission or presentation failed
	EndRender(imageIndex uint32) error

	// RecordSubmit resets and begins cb, runs record, then ends and submits cb with info.
	//
	// Parameters:
	//   - cb: the command buffer to record into
	//   - info: the wait and signal semaphores of the submission; CommandBuffers is filled in
	//   - record: the recording closure
	//
	// Returns:
	//   - error: the first error from recording or submission
	RecordSubmit(cb gpu.CommandBuffer, info gpu.SubmitInfo, record func(gpu.CommandBuffer) error) error

	// UploadSubmit records and submits a one-shot command buffer and waits for the device to go idle,
	// so resources written during record are complete before any later draw.
	//
	// Parameters:
	//   - record: the recording closure
	//
	// Returns:
	//   - error: the first error from recording, submission or waiting
	UploadSubmit(record func(gpu.CommandBuffer) error) error

	// RecreateSwapchain waits for the device to go idle, recreates the swapchain at the given size and
	// runs every resize hook. A zero size is ignored.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error wrapping ErrFatal if recreation or a hook failed
	RecreateSwapchain(width, height uint32) error

	// AddResizeHook registers a hook run after every swapchain recreation.
	//
	// Parameters:
	//   - hook: the hook
	AddResizeHook(hook ResizeHook)

	// CurrentCommandBuffer returns the command buffer of the current slot.
	//
	// Returns:
	//   - gpu.CommandBuffer: the current command buffer
	CurrentCommandBuffer() gpu.CommandBuffer

	// CurrentSlot returns the current slot.
	//
	// Returns:
	//   - Slot: the current slot
	CurrentSlot() Slot

	// Index returns the current slot index.
	//
	// Returns:
	//   - int: a value in [0, FramesInFlight)
	Index() int

	// FramesInFlight returns the ring size.
	//
	// Returns:
	//   - int: the number of slots
	FramesInFlight() int

	// InFrame reports whether StartRender succeeded without a matching EndRender.
	//
	// Returns:
	//   - bool: true while a frame is being recorded
	InFrame() bool

	// Recreations returns how many times the swapchain was recreated.
	//
	// Returns:
	//   - int: the recreation count
	Recreations() int

	// Release waits for the device and destroys every slot.
	Release()
}

var _ Scheduler = &scheduler{}

// NewScheduler allocates a ring of framesInFlight slots plus a command buffer for uploads.
//
// Parameters:
//   - device: the device
//   - framesInFlight: the ring size, DefaultFramesInFlight when not positive
//   - options: a variadic list of SchedulerBuilderOption functions
//
// Returns:
//   - Scheduler: the scheduler
//   - error: an error if a slot resource could not be created
func NewScheduler(device gpu.Device, framesInFlight int, options ...SchedulerBuilderOption) (Scheduler, error) {
	if framesInFlight <= 0 {
		framesInFlight = DefaultFramesInFlight
	}
	s := &scheduler{
		device: device,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.extentSource == nil {
		s.extentSource = device.SwapchainExtent
	}

	for i := 0; i < framesInFlight; i++ {
		slot, err := s.newSlot(i)
		if err != nil {
			s.Release()
			return nil, err
		}
		s.slots = append(s.slots, slot)
	}
	upload, err := device.CreateCommandBuffer("upload")
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("failed to create upload command buffer: %w", err)
	}
	s.upload = upload
	return s, nil
}

func (s *scheduler) newSlot(i int) (Slot, error) {
	var slot Slot
	var err error
	if slot.CommandBuffer, err = s.device.CreateCommandBuffer(fmt.Sprintf("frame %d", i)); err != nil {
		return slot, fmt.Errorf("failed to create frame %d command buffer: %w", i, err)
	}
	if slot.PresentSemaphore, err = s.device.CreateSemaphore(fmt.Sprintf("frame %d present", i)); err != nil {
		slot.CommandBuffer.Release()
		return Slot{}, fmt.Errorf("failed to create frame %d present semaphore: %w", i, err)
	}
	if slot.RenderSemaphore, err = s.device.CreateSemaphore(fmt.Sprintf("frame %d render", i)); err != nil {
		slot.CommandBuffer.Release()
		slot.PresentSemaphore.Release()
		return Slot{}, fmt.Errorf("failed to create frame %d render semaphore: %w", i, err)
	}
	return slot, nil
}

// needsRecreate reports whether err asks for a swapchain rebuild.
func needsRecreate(err error) bool {
	return errors.Is(err, gpu.ErrOutOfDate) || errors.Is(err, gpu.ErrSuboptimal)
}

func (s *scheduler) StartRender() (uint32, bool, error) {
	if s.inFrame {
		return 0, false, errors.New("frame: StartRender called twice without EndRender")
	}
	slot := s.slots[s.index]

	// The slot's previous submission must finish before its present semaphore is signalled again.
	if err := slot.CommandBuffer.Reset(); err != nil {
		return 0, false, fmt.Errorf("%w: failed to reset command buffer %s: %w", ErrFatal, slot.CommandBuffer.Label(), err)
	}
	imageIndex, err := s.device.AcquireNextImage(slot.PresentSemaphore)
	if needsRecreate(err) {
		extent := s.extentSource()
		if rerr := s.RecreateSwapchain(extent.Width, extent.Height); rerr != nil {
			return 0, false, rerr
		}
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: failed to acquire swapchain image: %w", ErrFatal, err)
	}

	if err := slot.CommandBuffer.Begin(); err != nil {
		return 0, false, fmt.Errorf("%w: failed to begin command buffer %s: %w", ErrFatal, slot.CommandBuffer.Label(), err)
	}
	s.inFrame = true
	return imageIndex, true, nil
}

func (s *scheduler) EndRender(imageIndex uint32) error {
	if !s.inFrame {
		return errors.New("frame: EndRender called without StartRender")
	}
	s.inFrame = false
	slot := s.slots[s.index]
	s.index = (s.index + 1) % len(s.slots)

	info := gpu.SubmitInfo{
		WaitSemaphores:   []gpu.Semaphore{slot.PresentSemaphore},
		WaitStages:       []gpu.PipelineStage{gpu.PipelineStageColorAttachmentOutput},
		SignalSemaphores: []gpu.Semaphore{slot.RenderSemaphore},
	}
	if err := s.endSubmit(slot.CommandBuffer, info); err != nil {
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}

	err := s.device.Present(imageIndex, slot.RenderSemaphore)
	if needsRecreate(err) {
		extent := s.extentSource()
		return s.RecreateSwapchain(extent.Width, extent.Height)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to present image %d: %w", ErrFatal, imageIndex, err)
	}
	return nil
}

// begin resets cb and starts recording.
func begin(cb gpu.CommandBuffer) error {
	if err := cb.Reset(); err != nil {
		return fmt.Errorf("failed to reset command buffer %s: %w", cb.Label(), err)
	}
	if err := cb.Begin(); err != nil {
		return fmt.Errorf("failed to begin command buffer %s: %w", cb.Label(), err)
	}
	return nil
}

// endSubmit ends recording of cb and submits it with info.
func (s *scheduler) endSubmit(cb gpu.CommandBuffer, info gpu.SubmitInfo) error {
	if err := cb.End(); err != nil {
		return fmt.Errorf("failed to end command buffer %s: %w", cb.Label(), err)
	}
	info.CommandBuffers = []gpu.CommandBuffer{cb}
	if err := s.device.Submit(info); err != nil {
		return fmt.Errorf("failed to submit command buffer %s: %w", cb.Label(), err)
	}
	return nil
}

func (s *scheduler) RecordSubmit(cb gpu.CommandBuffer, info gpu.SubmitInfo, record func(gpu.CommandBuffer) error) error {
	if err := begin(cb); err != nil {
		return err
	}
	if err := record(cb); err != nil {
		// Close the recording so the buffer can be reset next time.
		_ = cb.End()
		return err
	}
	return s.endSubmit(cb, info)
}

func (s *scheduler) UploadSubmit(record func(gpu.CommandBuffer) error) error {
	if err := s.RecordSubmit(s.upload, gpu.SubmitInfo{}, record); err != nil {
		return err
	}
	if err := s.device.WaitIdle(); err != nil {
		return fmt.Errorf("failed to wait for upload: %w", err)
	}
	return nil
}

func (s *scheduler) RecreateSwapchain(width, height uint32) error {
	extent := gpu.Extent{Width: width, Height: height}
	if extent.IsZero() {
		s.logger.Debug("swapchain recreation skipped for an empty surface",
			zap.Uint32("width", width),
			zap.Uint32("height", height))
		return nil
	}
	if err := s.device.WaitIdle(); err != nil {
		return fmt.Errorf("%w: failed to wait for device idle: %w", ErrFatal, err)
	}
	if err := s.device.RecreateSwapchain(extent); err != nil {
		return fmt.Errorf("%w: failed to recreate swapchain: %w", ErrFatal, err)
	}
	s.recreate++

	actual := s.device.SwapchainExtent()
	count := s.device.SwapchainImageCount()
	for _, hook := range s.hooks {
		if err := hook(actual, count); err != nil {
			return fmt.Errorf("%w: resize hook failed: %w", ErrFatal, err)
		}
	}
	s.logger.Info("swapchain recreated",
		zap.Uint32("width", actual.Width),
		zap.Uint32("height", actual.Height),
		zap.Int("images", count))
	return nil
}

func (s *scheduler) AddResizeHook(hook ResizeHook) {
	s.hooks = append(s.hooks, hook)
}

func (s *scheduler) CurrentCommandBuffer() gpu.CommandBuffer {
	return s.slots[s.index].CommandBuffer
}

func (s *scheduler) CurrentSlot() Slot {
	return s.slots[s.index]
}

func (s *scheduler) Index() int {
	return s.index
}

func (s *scheduler) FramesInFlight() int {
	return len(s.slots)
}

func (s *scheduler) InFrame() bool {
	return s.inFrame
}

func (s *scheduler) Recreations() int {
	return s.recreate
}

func (s *scheduler) Release() {
	if err := s.device.WaitIdle(); err != nil {
		s.logger.Warn("wait idle failed during release", zap.Error(err))
	}
	for _, slot := range s.slots {
		slot.CommandBuffer.Release()
		slot.PresentSemaphore.Release()
		slot.RenderSemaphore.Release()
	}
	s.slots = nil
	if s.upload != nil {
		s.upload.Release()
		s.upload = nil
	}
}
