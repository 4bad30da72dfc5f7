package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

// RenderEntities prints an entity table.
func RenderEntities(entities []*ontology.Entity) error {
	if len(entities) == 0 {
		pterm.Info.Println("No entities")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(entityRows(entities)).Render()
}

func entityRows(entities []*ontology.Entity) pterm.TableData {
	rows := pterm.TableData{{"ID", "Parents", "Note", "Created"}}
	for _, e := range entities {
		parents := make([]string, len(e.Parents))
		for i, p := range e.Parents {
			parents[i] = string(p)
		}
		rows = append(rows, []string{
			string(e.ID),
			strings.Join(parents, ", "),
			e.Note,
			e.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return rows
}

// RenderRelations prints a relation table with each relation's value
// in force at the given instant.
func RenderRelations(relations []*ontology.Relation, at time.Time) error {
	if len(relations) == 0 {
		pterm.Info.Println("No relations")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(relationRows(relations, at)).Render()
}

func relationRows(relations []*ontology.Relation, at time.Time) pterm.TableData {
	rows := pterm.TableData{{"Relation", "Now", "Default", "Origin", "Assertions"}}
	for _, r := range relations {
		v, _, ok := r.Timeline().At(at)
		if !ok {
			v = r.Default
		}
		rows = append(rows, []string{
			r.Key.String(),
			FormatTruth(v),
			FormatTruth(r.Default),
			r.Origin.String(),
			fmt.Sprintf("%d", r.Timeline().Len()),
		})
	}
	return rows
}

// RenderSegments prints the gapless partition a range query produced.
func RenderSegments(segments []temporal.Segment) error {
	if len(segments) == 0 {
		pterm.Info.Println("No segments")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(segmentRows(segments)).Render()
}

func segmentRows(segments []temporal.Segment) pterm.TableData {
	rows := pterm.TableData{{"Interval", "Value", "Origin"}}
	for _, s := range segments {
		rows = append(rows, []string{
			s.Interval.String(),
			FormatTruth(s.Value),
			s.Origin.String(),
		})
	}
	return rows
}

// RenderReport prints an inference run summary and its derivations.
func RenderReport(report inference.Report) error {
	if len(report.Derived) == 0 {
		pterm.Info.Printf("Nothing derived (%d rounds in %s)\n",
			report.Rounds, report.Elapsed.Round(time.Millisecond))
		return nil
	}

	pterm.Success.Printf("Derived %d facts in %d rounds (%s)\n",
		len(report.Derived), report.Rounds, report.Elapsed.Round(time.Millisecond))
	if report.Exhausted {
		pterm.Warning.Println("Inference budget exhausted; derivations may be incomplete")
	}
	if len(report.Contradictions) > 0 {
		pterm.Warning.Printf("%d contradictions skipped\n", len(report.Contradictions))
	}

	return pterm.DefaultTable.WithHasHeader().WithData(reportRows(report)).Render()
}

func reportRows(report inference.Report) pterm.TableData {
	rows := pterm.TableData{{"Rule", "Relation", "Value", "Window"}}
	for _, d := range report.Derived {
		rows = append(rows, []string{
			d.Rule,
			d.Relation.String(),
			FormatTruth(d.Value),
			d.Interval.String(),
		})
	}
	return rows
}

// FormatTruth colors a truth value: green for true, red for false,
// gray for unknown, yellow for superpositions.
func FormatTruth(v truth.Value) string {
	switch v.State {
	case truth.StateTrue:
		return pterm.Green(v.String())
	case truth.StateFalse:
		return pterm.Red(v.String())
	case truth.StateSuperposition:
		return pterm.Yellow(v.String())
	default:
		return pterm.Gray(v.String())
	}
}
