package frame

import (
	"errors"
	"strings"
	"testing"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gbuffer"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu/gputest"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/shader"
)

func newScheduler(t *testing.T, dev *gputest.Device, frames int, opts ...SchedulerBuilderOption) Scheduler {
	t.Helper()
	s, err := NewScheduler(dev, frames, opts...)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func renderFrame(t *testing.T, s Scheduler) uint32 {
	t.Helper()
	idx, ok, err := s.StartRender()
	if err != nil || !ok {
		t.Fatalf("StartRender = %d, %v, %v", idx, ok, err)
	}
	if err := s.EndRender(idx); err != nil {
		t.Fatalf("EndRender: %v", err)
	}
	return idx
}

func TestRingReturnsToStartAfterFCycles(t *testing.T) {
	for _, frames := range []int{1, 2, 3} {
		dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 3)
		s := newScheduler(t, dev, frames)
		if s.FramesInFlight() != frames {
			t.Fatalf("frames in flight = %d, want %d", s.FramesInFlight(), frames)
		}
		start := s.CurrentSlot()
		for i := 0; i < frames; i++ {
			if s.Index() != i {
				t.Fatalf("F=%d: index before frame %d = %d", frames, i, s.Index())
			}
			renderFrame(t, s)
		}
		if s.Index() != 0 || s.CurrentSlot() != start {
			t.Errorf("F=%d: ring did not return to its first slot", frames)
		}
		s.Release()
	}
}

func TestDefaultFramesInFlight(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 3)
	s := newScheduler(t, dev, 0)
	defer s.Release()
	if s.FramesInFlight() != DefaultFramesInFlight {
		t.Errorf("frames in flight = %d, want %d", s.FramesInFlight(), DefaultFramesInFlight)
	}
}

func TestEndRenderSubmitsWithSlotSemaphores(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 3)
	s := newScheduler(t, dev, 2)
	defer s.Release()

	slot := s.CurrentSlot()
	idx := renderFrame(t, s)

	submits := dev.Submits()
	if len(submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(submits))
	}
	info := submits[0]
	if len(info.CommandBuffers) != 1 || info.CommandBuffers[0] != slot.CommandBuffer {
		t.Error("submission does not carry the slot command buffer")
	}
	if len(info.WaitSemaphores) != 1 || info.WaitSemaphores[0] != slot.PresentSemaphore {
		t.Error("submission does not wait on the present semaphore")
	}
	if len(info.WaitStages) != 1 || info.WaitStages[0] != gpu.PipelineStageColorAttachmentOutput {
		t.Errorf("wait stages = %v", info.WaitStages)
	}
	if len(info.SignalSemaphores) != 1 || info.SignalSemaphores[0] != slot.RenderSemaphore {
		t.Error("submission does not signal the render semaphore")
	}
	if presents := dev.Presents(); len(presents) != 1 || presents[0] != idx {
		t.Errorf("presents = %v, want [%d]", presents, idx)
	}
	if cb := slot.CommandBuffer.(*gputest.CommandBuffer); cb.Resets != 1 || cb.Recording() {
		t.Errorf("command buffer resets %d recording %v", cb.Resets, cb.Recording())
	}
}

func TestStartRenderRecreatesOnOutOfDate(t *testing.T) {
	for _, acquireErr := range []error{gpu.ErrOutOfDate, gpu.ErrSuboptimal} {
		dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 2)
		var hooked []gpu.Extent
		s := newScheduler(t, dev, 2,
			WithExtentSource(func() gpu.Extent { return gpu.Extent{Width: 128, Height: 96} }),
			WithResizeHook(func(extent gpu.Extent, imageCount int) error {
				hooked = append(hooked, extent)
				return nil
			}),
		)
		dev.AcquireErrors = []error{acquireErr}

		_, ok, err := s.StartRender()
		if err != nil || ok {
			t.Fatalf("StartRender after %v = ok %v, err %v; want a dropped frame", acquireErr, ok, err)
		}
		if got := dev.Recreations(); len(got) != 1 || got[0] != (gpu.Extent{Width: 128, Height: 96}) {
			t.Errorf("recreations = %v", got)
		}
		if len(hooked) != 1 || hooked[0].Width != 128 {
			t.Errorf("resize hook calls = %v", hooked)
		}
		if dev.WaitIdles() != 1 {
			t.Errorf("wait idles = %d, want 1 before recreation", dev.WaitIdles())
		}
		if len(dev.Submits()) != 0 || s.InFrame() || s.Index() != 0 {
			t.Error("a dropped frame must not submit or advance")
		}
		renderFrame(t, s)
		s.Release()
	}
}

func TestEndRenderRecreatesOnSuboptimalPresent(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 2)
	s := newScheduler(t, dev, 2)
	defer s.Release()
	dev.PresentErrors = []error{gpu.ErrSuboptimal}

	idx, ok, err := s.StartRender()
	if err != nil || !ok {
		t.Fatalf("StartRender: %v", err)
	}
	if err := s.EndRender(idx); err != nil {
		t.Fatalf("EndRender: %v", err)
	}
	if s.Recreations() != 1 || len(dev.Recreations()) != 1 {
		t.Errorf("recreations = %d", s.Recreations())
	}
	if s.Index() != 1 {
		t.Errorf("index = %d, want 1", s.Index())
	}
}

func TestFatalErrors(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 2)
		s := newScheduler(t, dev, 2)
		dev.PresentErrors = []error{gpu.ErrDeviceLost}
		idx, _, _ := s.StartRender()
		err := s.EndRender(idx)
		if !errors.Is(err, ErrFatal) || !errors.Is(err, gpu.ErrDeviceLost) {
			t.Errorf("EndRender = %v, want ErrFatal wrapping ErrDeviceLost", err)
		}
	})
	t.Run("submit", func(t *testing.T) {
		dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 2)
		s := newScheduler(t, dev, 2)
		dev.SubmitError = errors.New("queue exploded")
		idx, _, _ := s.StartRender()
		if err := s.EndRender(idx); !errors.Is(err, ErrFatal) {
			t.Errorf("EndRender = %v, want ErrFatal", err)
		}
	})
	t.Run("acquire", func(t *testing.T) {
		dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 2)
		s := newScheduler(t, dev, 2)
		dev.AcquireErrors = []error{gpu.ErrDeviceLost}
		if _, ok, err := s.StartRender(); ok || !errors.Is(err, ErrFatal) {
			t.Errorf("StartRender = %v, %v, want ErrFatal", ok, err)
		}
	})
}

func TestStartEndPairing(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 2)
	s := newScheduler(t, dev, 2)
	defer s.Release()
	if err := s.EndRender(0); err == nil {
		t.Error("EndRender without StartRender should fail")
	}
	if _, _, err := s.StartRender(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.StartRender(); err == nil {
		t.Error("nested StartRender should fail")
	}
}

func TestRecordSubmitOrder(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 2)
	s := newScheduler(t, dev, 2)
	defer s.Release()

	cbi, _ := dev.CreateCommandBuffer("one-shot")
	cb := cbi.(*gputest.CommandBuffer)
	var recording bool
	err := s.RecordSubmit(cb, gpu.SubmitInfo{}, func(c gpu.CommandBuffer) error {
		recording = cb.Recording()
		c.Draw(3, 1, 0, 0)
		return nil
	})
	if err != nil {
		t.Fatalf("RecordSubmit: %v", err)
	}
	if !recording {
		t.Error("closure ran outside Begin/End")
	}
	if cb.Resets != 1 || cb.Submitted != 1 || cb.Recording() {
		t.Errorf("resets %d submitted %d recording %v", cb.Resets, cb.Submitted, cb.Recording())
	}
	if got := strings.Join(cb.Names(), ","); got != "draw" {
		t.Errorf("commands = %s", got)
	}

	failure := errors.New("record failed")
	if err := s.RecordSubmit(cb, gpu.SubmitInfo{}, func(gpu.CommandBuffer) error { return failure }); !errors.Is(err, failure) {
		t.Errorf("RecordSubmit = %v", err)
	}
	if cb.Submitted != 1 || cb.Recording() {
		t.Error("a failed recording must not be submitted and must be closed")
	}
}

func TestUploadSubmitWaitsIdle(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 2)
	s := newScheduler(t, dev, 2)
	defer s.Release()

	if err := s.UploadSubmit(func(gpu.CommandBuffer) error { return nil }); err != nil {
		t.Fatalf("UploadSubmit: %v", err)
	}
	if len(dev.Submits()) != 1 || dev.WaitIdles() != 1 {
		t.Errorf("submits %d wait idles %d", len(dev.Submits()), dev.WaitIdles())
	}
}

func TestRecreateSwapchainIgnoresZeroSize(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 2)
	s := newScheduler(t, dev, 2)
	defer s.Release()
	if err := s.RecreateSwapchain(0, 480); err != nil {
		t.Fatal(err)
	}
	if len(dev.Recreations()) != 0 || s.Recreations() != 0 {
		t.Error("zero-size recreation reached the device")
	}
}

func TestResizeRebuildsGBufferForNewImageCount(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 800, Height: 600}, 2)
	lib, err := shader.DefaultLibrary("")
	if err != nil {
		t.Fatal(err)
	}
	g, err := gbuffer.New(dev, gbuffer.Config{Samples: 4, Shaders: lib})
	if err != nil {
		t.Fatalf("gbuffer.New: %v", err)
	}
	defer g.Release()
	s := newScheduler(t, dev, 2, WithResizeHook(g.Resize))
	defer s.Release()

	dev.SetImageCount(4)
	dev.ResetOps()
	if err := s.RecreateSwapchain(1280, 720); err != nil {
		t.Fatalf("RecreateSwapchain: %v", err)
	}

	if got := g.FramebufferCount(); got != 4 {
		t.Errorf("framebuffers = %d, want the new image count 4", got)
	}
	if g.Extent() != (gpu.Extent{Width: 1280, Height: 720}) {
		t.Errorf("gbuffer extent = %+v", g.Extent())
	}
	seenCreate := false
	for _, op := range dev.Ops() {
		if op.Object != "image" {
			continue
		}
		if op.Kind == "create" {
			seenCreate = true
		} else if seenCreate {
			t.Fatalf("image %s released after new images were created", op.Label)
		}
	}
	if !seenCreate {
		t.Error("resize created no images")
	}
}

func TestReleaseFreesSlots(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 2)
	s := newScheduler(t, dev, 3)
	s.Release()
	if dev.Live("commandbuffer") != 0 || dev.Live("semaphore") != 0 {
		t.Errorf("live command buffers %d semaphores %d", dev.Live("commandbuffer"), dev.Live("semaphore"))
	}
}
