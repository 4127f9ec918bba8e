package wal

import (
	"errors"

	"github.com/beevik/etree"
)

type note struct {
	ID   string
	Text string
	Tags []string
}

type noteCodec struct{}

func (noteCodec) ElementName() string { return "Note" }

func (noteCodec) ID(n *note) string { return n.ID }

func (noteCodec) Encode(n *note) (*etree.Element, error) {
	el := etree.NewElement("Note")
	el.CreateAttr("id", n.ID)
	el.CreateElement("Text").SetText(n.Text)
	for _, tag := range n.Tags {
		el.CreateElement("Tag").SetText(tag)
	}
	return el, nil
}

func (noteCodec) Decode(el *etree.Element) (*note, error) {
	if el.Tag != "Note" {
		return nil, errors.New("not a note")
	}
	n := &note{ID: el.SelectAttrValue("id", "")}
	if t := el.SelectElement("Text"); t != nil {
		n.Text = t.Text()
	}
	for _, tag := range el.SelectElements("Tag") {
		n.Tags = append(n.Tags, tag.Text())
	}
	return n, nil
}

func (noteCodec) Clone(n *note) *note {
	c := *n
	c.Tags = append([]string(nil), n.Tags...)
	return &c
}

// recorder counts recovery callbacks
type recorder struct {
	created, updated, deleted []string
}

func (r *recorder) OnRecoveryCreate(n *note) { r.created = append(r.created, n.ID) }
func (r *recorder) OnRecoveryUpdate(n *note) { r.updated = append(r.updated, n.ID) }
func (r *recorder) OnRecoveryDelete(n *note) { r.deleted = append(r.deleted, n.ID) }
