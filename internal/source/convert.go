package source

import (
	"github.com/kaorin/bilisync/internal/apiclient"
)

func fromAPI(d apiclient.VideoDescriptor) Descriptor {
	return Descriptor{
		RemoteBVID:   d.RemoteBVID,
		RemoteAID:    d.RemoteAID,
		Name:         d.Name,
		Intro:        d.Intro,
		CoverURL:     d.CoverURL,
		CTime:        d.CTime,
		PubTime:      d.PubTime,
		FavTime:      d.FavTime,
		UploaderID:   d.UploaderID,
		UploaderName: d.UploaderName,
		Tags:         d.Tags,
		PageCount:    d.PageCount,
		SinglePage:   d.SinglePage,
	}
}
