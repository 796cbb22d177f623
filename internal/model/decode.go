package model

import "encoding/json"

// rawExtraData mirrors the feed's extraData object where any field may be set.
type rawExtraData struct {
	Generic      *Generic      `json:"generic"`
	Spotlight    *Spotlight    `json:"spotlight"`
	RaidBattles  *RaidBattles  `json:"raidbattles"`
	CommunityDay *CommunityDay `json:"communityday"`
	Breakthrough *Breakthrough `json:"breakthrough"`
}

// UnmarshalJSON decodes the event and resolves extraData into a single
// Extension variant.
func (e *SourceEvent) UnmarshalJSON(data []byte) error {
	type plain SourceEvent
	var aux struct {
		plain
		ExtraData *rawExtraData `json:"extraData"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = SourceEvent(aux.plain)
	e.Extra = aux.ExtraData.resolve()
	return nil
}

// resolve picks the populated variant. Later entries in the feed's own
// precedence (community day, then raid battles, then spotlight) win.
func (r *rawExtraData) resolve() Extension {
	if r == nil {
		return nil
	}
	switch {
	case r.CommunityDay != nil:
		return *r.CommunityDay
	case r.RaidBattles != nil:
		return *r.RaidBattles
	case r.Spotlight != nil:
		return *r.Spotlight
	case r.Breakthrough != nil:
		return *r.Breakthrough
	case r.Generic != nil:
		return *r.Generic
	}
	return nil
}
