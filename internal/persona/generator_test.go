package persona

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"persona/internal/comfy"
	"persona/internal/domain"
	"persona/internal/storage"
	"persona/internal/workflow"
)

const bundledWorkflow = "../../assets/workflows/persona.json"

type fakeEngine struct {
	mu           sync.Mutex
	uploads      []domain.AssetHandle
	jobs         []workflow.Template
	failSubmitAt int
	failUploadAt int
	noOutputFor  string
	pollTimeout  bool
}

func (f *fakeEngine) UploadImage(_ context.Context, img domain.InputImage) (domain.AssetHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.uploads)+1 == f.failUploadAt {
		f.uploads = append(f.uploads, "")
		return "", fmt.Errorf("%w: status 413: file too large", domain.ErrUploadRejected)
	}
	h := domain.AssetHandle(fmt.Sprintf("upload-%d%s", len(f.uploads)+1, img.Ext()))
	f.uploads = append(f.uploads, h)
	return h, nil
}

func (f *fakeEngine) QueuePrompt(_ context.Context, tpl workflow.Template) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, tpl)
	if len(f.jobs) == f.failSubmitAt {
		return "", fmt.Errorf("%w: status 500: queue full", domain.ErrSubmissionRejected)
	}
	return fmt.Sprintf("job-%d", len(f.jobs)), nil
}

func (f *fakeEngine) Poll(_ context.Context, id string) (comfy.PollResult, error) {
	if f.pollTimeout {
		return comfy.PollResult{Attempts: 60, TimedOut: true}, nil
	}
	if id == f.noOutputFor {
		return comfy.PollResult{Entry: &comfy.HistoryEntry{Outputs: map[string]comfy.NodeOutput{}}, Attempts: 1}, nil
	}
	return comfy.PollResult{
		Entry: &comfy.HistoryEntry{Outputs: map[string]comfy.NodeOutput{
			"39": {Images: []comfy.ImageRef{{Filename: id + ".png", Type: "output"}}},
		}},
		Attempts: 2,
	}, nil
}

type fakeSource struct{}

func (fakeSource) Fetch(_ context.Context, ref comfy.ImageRef) (domain.Artifact, error) {
	return domain.Artifact{Filename: ref.Filename, ContentType: "image/png", Data: []byte("img:" + ref.Filename)}, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	keys    []string
	failFor domain.Emotion
}

func (p *fakePublisher) Publish(_ context.Context, key string, _ []byte, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	if p.failFor != "" && strings.HasPrefix(key, "generate_images/"+string(p.failFor)+"_") {
		return "", fmt.Errorf("%w: bucket unavailable", domain.ErrPublishFailed)
	}
	return "https://cdn.test/" + key, nil
}

type fakeStore struct {
	mu    sync.Mutex
	saves map[string][]map[domain.Emotion]string
}

func (s *fakeStore) SaveImages(_ context.Context, uid string, images map[domain.Emotion]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saves == nil {
		s.saves = map[string][]map[domain.Emotion]string{}
	}
	s.saves[uid] = append(s.saves[uid], images)
	return nil
}

func (s *fakeStore) Get(context.Context, string) (*domain.PersonaRecord, error) {
	return nil, domain.ErrNotFound
}

type countingLease struct {
	mu       sync.Mutex
	acquired int
	held     bool
}

func (l *countingLease) Acquire(context.Context) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, errors.New("lease already held")
	}
	l.held = true
	l.acquired++
	return func() {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
	}, nil
}

type fixture struct {
	engine    *fakeEngine
	publisher *fakePublisher
	store     *fakeStore
	lease     *countingLease
	gen       *Generator
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	loader, err := workflow.NewLoader(workflow.DefaultBindings())
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	f := &fixture{engine: &fakeEngine{}, publisher: &fakePublisher{}, store: &fakeStore{}, lease: &countingLease{}}
	opts := Options{
		Loader:       loader,
		WorkflowPath: bundledWorkflow,
		Engine:       f.engine,
		Source:       fakeSource{},
		Publisher:    f.publisher,
		Store:        f.store,
		Lease:        f.lease,
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.gen, err = New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func face() domain.InputImage {
	return domain.InputImage{Data: []byte("face"), Filename: "me.jpg", ContentType: "image/jpeg"}
}

func TestGenerateEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.gen.Generate(context.Background(), "u1", face(), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Status != domain.StatusComplete {
		t.Fatalf("status = %q", res.Status)
	}
	var keys []string
	for e, r := range res.Images {
		keys = append(keys, string(e))
		if !r.Succeeded() || r.ImageURL == "" {
			t.Fatalf("%s not successful: %+v", e, r)
		}
	}
	sort.Strings(keys)
	want := []string{"anger", "disgust", "joy", "sadness", "serious"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Fatalf("result keys = %v, want %v", keys, want)
	}

	saves := f.store.saves["u1"]
	if len(saves) != 1 || len(saves[0]) != 5 {
		t.Fatalf("store writes for u1 = %#v", saves)
	}
	for e, url := range saves[0] {
		if url != res.Images[e].ImageURL {
			t.Fatalf("stored %s = %q, result has %q", e, url, res.Images[e].ImageURL)
		}
	}
	if f.lease.acquired != 5 {
		t.Fatalf("lease acquired %d times, want 5", f.lease.acquired)
	}
	if f.publisher.keys[0] != "generate_images/joy_job-1.png" {
		t.Fatalf("first published key = %q", f.publisher.keys[0])
	}
}

func TestGenerateBindsEveryJob(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.gen.Generate(context.Background(), "", face(), nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	prompts := DefaultPrompts()
	if len(f.engine.jobs) != len(domain.Emotions) {
		t.Fatalf("submitted %d jobs", len(f.engine.jobs))
	}
	for i, job := range f.engine.jobs {
		emotion := domain.Emotions[i]
		for _, node := range []string{"25", "34"} {
			if got, _ := job.Input(node, "text"); got != prompts[emotion] {
				t.Fatalf("job %d node %s prompt = %v", i, node, got)
			}
		}
		for _, node := range []string{"7", "24"} {
			if got, _ := job.Input(node, "text"); got != NegativePrompt {
				t.Fatalf("job %d node %s negative = %v", i, node, got)
			}
		}
		s1, _ := job.Input("19", "noise_seed")
		s2, _ := job.Input("28", "noise_seed")
		if s1 != s2 {
			t.Fatalf("job %d seeds differ: %v vs %v", i, s1, s2)
		}
		// the handle the uploader returned is what the job references
		if got, _ := job.Input("1", "image"); got != string(f.engine.uploads[i]) {
			t.Fatalf("job %d image = %v, uploaded %q", i, got, f.engine.uploads[i])
		}
	}
}

func TestGenerateSeedsVaryAcrossJobs(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 2; i++ {
		if _, err := f.gen.Generate(context.Background(), "", face(), nil); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	seen := map[any]struct{}{}
	for _, job := range f.engine.jobs {
		s, _ := job.Input("19", "noise_seed")
		if _, ok := s.(uint32); !ok {
			t.Fatalf("seed has type %T, want uint32", s)
		}
		seen[s] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatalf("seed constant across %d jobs", len(f.engine.jobs))
	}
}

func TestGenerateContinuesAfterSubmissionFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.failSubmitAt = 3

	var progress []Progress
	res, err := f.gen.Generate(context.Background(), "u1", face(), func(p Progress) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(f.engine.jobs) != 5 {
		t.Fatalf("emotions after the failure were not attempted: %d submissions", len(f.engine.jobs))
	}
	if res.Status != domain.StatusPartial {
		t.Fatalf("status = %q, want partial", res.Status)
	}
	failed := res.Images[domain.EmotionAnger]
	if failed.Succeeded() || failed.Kind != domain.KindSubmissionRejected || failed.Message == "" {
		t.Fatalf("unexpected anger result %+v", failed)
	}
	if len(res.URLs()) != 4 {
		t.Fatalf("expected 4 successes, got %d", len(res.URLs()))
	}
	if len(progress) != 5 || progress[2].Result.Emotion != domain.EmotionAnger || progress[4].Index != 5 {
		t.Fatalf("unexpected progress %+v", progress)
	}
	if saved := f.store.saves["u1"]; len(saved) != 1 || len(saved[0]) != 4 {
		t.Fatalf("expected the four successes persisted, got %#v", saved)
	}
}

func TestGenerateTagsEachFailureAndContinues(t *testing.T) {
	cases := []struct {
		name    string
		arrange func(*fixture)
		emotion domain.Emotion
		kind    domain.ErrorKind
	}{
		{"upload rejected", func(f *fixture) { f.engine.failUploadAt = 2 }, domain.EmotionSadness, domain.KindUploadRejected},
		{"output node missing", func(f *fixture) { f.engine.noOutputFor = "job-4" }, domain.EmotionDisgust, domain.KindUnexpectedResult},
		{"publish failed", func(f *fixture) { f.publisher.failFor = domain.EmotionSerious }, domain.EmotionSerious, domain.KindPublishFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			tc.arrange(f)

			res, err := f.gen.Generate(context.Background(), "u1", face(), nil)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if res.Status != domain.StatusPartial || len(res.Images) != 5 {
				t.Fatalf("status = %q with %d results, want partial with 5", res.Status, len(res.Images))
			}
			failed := res.Images[tc.emotion]
			if failed.Succeeded() || failed.Kind != tc.kind || failed.Message == "" {
				t.Fatalf("unexpected %s result %+v", tc.emotion, failed)
			}
			for _, e := range domain.Emotions {
				if e != tc.emotion && !res.Images[e].Succeeded() {
					t.Fatalf("%s should have succeeded: %+v", e, res.Images[e])
				}
			}
			if len(f.engine.uploads) != 5 {
				t.Fatalf("batch stopped early: %d uploads", len(f.engine.uploads))
			}
			if saved := f.store.saves["u1"]; len(saved) != 1 || len(saved[0]) != 4 {
				t.Fatalf("expected the four successes persisted, got %#v", saved)
			}
			if _, ok := f.store.saves["u1"][0][tc.emotion]; ok {
				t.Fatalf("failed emotion %s was persisted", tc.emotion)
			}
		})
	}
}

func TestGenerateRecordsPollTimeout(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.pollTimeout = true

	res, err := f.gen.Generate(context.Background(), "u1", face(), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	for e, r := range res.Images {
		if r.Kind != domain.KindPollTimeout {
			t.Fatalf("%s kind = %q", e, r.Kind)
		}
	}
	if len(f.store.saves) != 0 {
		t.Fatalf("nothing should be persisted: %#v", f.store.saves)
	}
}

func TestGenerateStopsOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := f.gen.Generate(ctx, "u1", face(), func(p Progress) {
		if p.Index == 1 {
			cancel()
		}
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(f.engine.uploads) != 1 {
		t.Fatalf("engine used %d times after cancel", len(f.engine.uploads))
	}
	if !res.Images[domain.EmotionJoy].Succeeded() {
		t.Fatalf("first emotion should have succeeded")
	}
	for _, e := range domain.Emotions[1:] {
		if res.Images[e].Kind != domain.KindCancelled {
			t.Fatalf("%s kind = %q, want cancelled", e, res.Images[e].Kind)
		}
	}
	if saved := f.store.saves["u1"]; len(saved) != 1 || len(saved[0]) != 1 {
		t.Fatalf("the completed emotion should still be persisted, got %#v", saved)
	}
}

func TestGenerateCoolsDownBetweenEmotions(t *testing.T) {
	const cooldown = 15 * time.Millisecond
	f := newFixture(t, func(o *Options) { o.Cooldown = cooldown })

	var stamps []time.Time
	start := time.Now()
	if _, err := f.gen.Generate(context.Background(), "", face(), func(Progress) { stamps = append(stamps, time.Now()) }); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 4*cooldown {
		t.Fatalf("batch took %s, expected at least four cooldowns", elapsed)
	}
	if gap := stamps[0].Sub(start); gap >= cooldown {
		t.Fatalf("cooldown applied before the first emotion (%s)", gap)
	}
}

func TestGenerateMissingTemplate(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.WorkflowPath = filepath.Join(t.TempDir(), "missing.json") })
	_, err := f.gen.Generate(context.Background(), "u1", face(), nil)
	if !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
	if len(f.engine.uploads) != 0 {
		t.Fatalf("engine should not be called")
	}
}

func TestGenerateRejectsEmptyImage(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.gen.Generate(context.Background(), "u1", domain.InputImage{}, nil); !errors.Is(err, domain.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestRegeneratePersistsSingleEmotion(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.gen.Regenerate(context.Background(), "u2", domain.EmotionDisgust, face())
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if !res.Succeeded() || res.Emotion != domain.EmotionDisgust {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(f.engine.jobs) != 1 {
		t.Fatalf("submitted %d jobs", len(f.engine.jobs))
	}
	if got, _ := f.engine.jobs[0].Input("25", "text"); got != DefaultPrompts()[domain.EmotionDisgust] {
		t.Fatalf("wrong prompt bound: %v", got)
	}
	saved := f.store.saves["u2"]
	if len(saved) != 1 || len(saved[0]) != 1 || saved[0][domain.EmotionDisgust] != res.ImageURL {
		t.Fatalf("unexpected store writes %#v", saved)
	}
}

func TestRegenerateUnknownEmotion(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.gen.Regenerate(context.Background(), "", domain.Emotion("bored"), face()); !errors.Is(err, domain.ErrUnknownEmotion) {
		t.Fatalf("expected ErrUnknownEmotion, got %v", err)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error for empty options")
	}
}

func TestDefaultsSelectByGender(t *testing.T) {
	d := Defaults{Male: "../../assets/images/male.png", Female: "../../assets/images/female.png"}
	cases := map[string]string{
		"female": d.Female,
		"Female": d.Female,
		"male":   d.Male,
		"":       d.Male,
		"other":  d.Male,
	}
	for gender, want := range cases {
		if got := d.Path(gender); got != want {
			t.Fatalf("Path(%q) = %q, want %q", gender, got, want)
		}
	}
	img, err := d.Image("female")
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if img.Filename != "female.png" || img.ContentType != "image/png" || len(img.Data) == 0 {
		t.Fatalf("unexpected default image %+v", img.Filename)
	}
}

func TestDirSourceReadsEngineOutput(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "persona"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "persona", "out_0001_.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFileStore(dir, "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	art, err := DirSource{Store: store}.Fetch(context.Background(), comfy.ImageRef{Filename: "out_0001_.png", Subfolder: "persona"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(art.Data) != "png" || art.ContentType != "image/png" {
		t.Fatalf("unexpected artifact %+v", art)
	}
}

func TestArtifactKey(t *testing.T) {
	if got := ArtifactKey(domain.EmotionSerious, "ComfyUI_00012_.png"); got != "generate_images/serious_ComfyUI_00012_.png" {
		t.Fatalf("ArtifactKey = %q", got)
	}
}
