package chunk

import "claimsift/internal/model"

// Chunk is one overlapping window over the transcript, sized for the
// backend's context limit. Chunks exist only during a run.
type Chunk struct {
	Segments []model.Segment
	Index    int

	// FirstSegment is the position of Segments[0] in the input, used to
	// label segments stably across overlapping chunks.
	FirstSegment int

	// CharStart and CharEnd are offsets into the newline-joined
	// concatenation of all segment texts.
	CharStart int
	CharEnd   int
}

// TimeSpan returns the transcript time range the chunk covers.
// Out-of-span model output is clamped to this range during normalization.
func (c Chunk) TimeSpan() model.TimeRange {
	if len(c.Segments) == 0 {
		return model.TimeRange{}
	}
	span := model.TimeRange{Start: c.Segments[0].StartTimeS, End: c.Segments[0].EndTimeS}
	for _, seg := range c.Segments[1:] {
		if seg.StartTimeS < span.Start {
			span.Start = seg.StartTimeS
		}
		if seg.EndTimeS > span.End {
			span.End = seg.EndTimeS
		}
	}
	return span
}

// Build splits segments into overlapping windows. Segments are appended
// greedily until the next one would exceed maxChars; the following window
// re-includes trailing segments until at least overlapChars of text repeat,
// so no boundary region is split across two chunks without appearing whole
// in one of them. A single segment longer than maxChars gets its own chunk
// unmodified.
func Build(segments []model.Segment, maxChars, overlapChars int) []Chunk {
	if len(segments) == 0 {
		return nil
	}
	if maxChars <= 0 {
		maxChars = 6000
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	// Offsets into the newline-joined concatenation of segment texts.
	starts := make([]int, len(segments))
	offset := 0
	for i, seg := range segments {
		starts[i] = offset
		offset += len(seg.Text) + 1
	}

	var chunks []Chunk
	i := 0
	for i < len(segments) {
		j := i
		chars := 0
		for j < len(segments) {
			add := len(segments[j].Text)
			if j > i {
				add++ // joining newline
			}
			if chars+add > maxChars && j > i {
				break
			}
			chars += add
			j++
		}

		last := segments[j-1]
		chunks = append(chunks, Chunk{
			Segments:     segments[i:j],
			Index:        len(chunks),
			FirstSegment: i,
			CharStart:    starts[i],
			CharEnd:      starts[j-1] + len(last.Text),
		})
		if j >= len(segments) {
			break
		}

		// Seed the next window with trailing segments until the repeated
		// text reaches overlapChars. The next start stays strictly past
		// the current one so the walk always terminates.
		k := j
		tail := 0
		for k > i+1 && tail < overlapChars {
			tail += len(segments[k-1].Text) + 1
			k--
		}
		i = k
	}

	return chunks
}

// Claims windows deduplicated claims by record count for the
// query-generation stage, with a trailing record overlap.
func Claims(claims []model.ClaimRecord, size, overlap int) [][]model.ClaimRecord {
	if len(claims) == 0 {
		return nil
	}
	if size <= 0 {
		size = 25
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	var windows [][]model.ClaimRecord
	for start := 0; start < len(claims); {
		end := start + size
		if end > len(claims) {
			end = len(claims)
		}
		windows = append(windows, claims[start:end])
		if end >= len(claims) {
			break
		}
		start = end - overlap
	}
	return windows
}
