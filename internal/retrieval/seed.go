package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type seedDoc struct {
	id       string
	language string
	category string
	text     string
}

// seedCorpus is the built-in reference material: grammar rules and example
// sentences for the supported languages, plus cross-language notes tagged
// "General".
var seedCorpus = []seedDoc{
	// English grammar (explaining complex English in simple English)
	{"en_phrasal_verbs", "English", CategoryGrammar, "Phrasal verbs are verbs combined with prepositions or adverbs that create new meanings. 'Give up' means to stop trying. 'Look after' means to take care of. 'Put off' means to delay. The meaning often can't be guessed from the individual words. Example: 'I had to put off the meeting' means I had to delay it."},
	{"en_conditionals", "English", CategoryGrammar, "Conditionals express 'if...then' situations. Zero conditional (facts): 'If you heat water, it boils.' First conditional (likely future): 'If it rains, I will stay home.' Second conditional (unlikely): 'If I won the lottery, I would travel.' Third conditional (past unreal): 'If I had studied, I would have passed.'"},
	{"en_articles", "English", CategoryGrammar, "Use 'a' before consonant sounds ('a book'), 'an' before vowel sounds ('an apple'). Use 'the' for specific things both speaker and listener know ('the sun', 'the book you mentioned'). No article for general plurals ('Dogs are friendly') or abstract concepts ('Love is important')."},
	{"en_tenses", "English", CategoryGrammar, "Present simple (habits): 'I work every day.' Present continuous (now): 'I am working.' Past simple (finished): 'I worked yesterday.' Present perfect (past connected to now): 'I have worked here for 5 years.' Past perfect (before another past event): 'I had already eaten when she arrived.'"},
	{"en_confusing_pairs", "English", CategoryGrammar, "Common confusing words: affect (verb) vs effect (noun): 'The rain affects my mood' vs 'The effect is clear.' Their (possession) vs there (place) vs they're (they are). Its (belonging to it) vs it's (it is). Your (belonging to you) vs you're (you are)."},
	{"en_passive_voice", "English", CategoryGrammar, "Passive voice puts focus on the action, not who does it. Active: 'The chef cooked the meal.' Passive: 'The meal was cooked (by the chef).' Form: be + past participle. Use passive when the doer is unknown, unimportant, or obvious. 'The window was broken.' 'English is spoken worldwide.'"},
	{"en_prepositions", "English", CategoryGrammar, "Prepositions show relationships. Time: at (specific time: at 3pm), on (days: on Monday), in (longer periods: in March, in 2024). Place: at (point: at the door), on (surface: on the table), in (enclosed: in the box). Movement: to (destination), into (entering), onto (surface)."},
	{"en_idioms", "English", CategoryGrammar, "Idioms are expressions with non-literal meanings. 'Break the ice' = start a conversation. 'Piece of cake' = very easy. 'Hit the nail on the head' = exactly right. 'Under the weather' = feeling sick. 'Cost an arm and a leg' = very expensive. Learn them as fixed phrases."},

	// Chinese (Mandarin)
	{"zh_tones", "Chinese", CategoryGrammar, "Chinese has 4 main tones plus a neutral tone. First tone (ˉ): high and flat (mā 妈 = mother). Second tone (ˊ): rising (má 麻 = hemp). Third tone (ˇ): falling-rising (mǎ 马 = horse). Fourth tone (ˋ): falling (mà 骂 = scold). Wrong tones change meaning completely!"},
	{"zh_sentence_structure", "Chinese", CategoryGrammar, "Chinese basic word order is Subject-Verb-Object (SVO) like English. 我吃饭 (Wǒ chī fàn) = I eat rice. Time and location come before the verb: 我今天在家吃饭 (I today at-home eat-rice). Question words stay in place: 你吃什么？(You eat what?) = What do you eat?"},
	{"zh_measure_words", "Chinese", CategoryGrammar, "Chinese uses measure words (量词) between numbers and nouns. 一个人 (yī gè rén) = one person (个 is general). 一本书 (yī běn shū) = one book (本 for books). 一只猫 (yī zhī māo) = one cat (只 for animals). Each noun category has specific measure words."},
	{"zh_aspect_particles", "Chinese", CategoryGrammar, "Chinese uses particles instead of verb conjugation to show tense/aspect. 了 (le): completed action (我吃了 = I ate). 过 (guò): past experience (我吃过 = I have eaten before). 着 (zhe): ongoing state (他坐着 = he is sitting). 在 (zài): in progress (我在吃 = I am eating)."},
	{"zh_ba_structure", "Chinese", CategoryGrammar, "The 把 (bǎ) structure emphasizes what happens to an object. Pattern: Subject + 把 + Object + Verb + Result. 我把书放在桌子上 (I BA book put on table) = I put the book on the table. Used when the action changes the object's state or position."},

	// Russian
	{"ru_cases", "Russian", CategoryGrammar, "Russian has 6 grammatical cases. Nominative (subject): кто? что? Genitive (possession, 'of'): кого? чего? Dative (indirect object, 'to'): кому? чему? Accusative (direct object): кого? что? Instrumental ('with/by'): кем? чем? Prepositional ('about/in'): о ком? о чём? Each case has different noun endings."},
	{"ru_verb_aspect", "Russian", CategoryGrammar, "Russian verbs have two aspects: imperfective (incomplete/repeated) and perfective (complete/single). читать (imperfective) = to read/be reading. прочитать (perfective) = to finish reading. Я читал книгу (I was reading) vs Я прочитал книгу (I finished reading). Most verbs come in pairs."},
	{"ru_gender", "Russian", CategoryGrammar, "Russian nouns have three genders. Masculine: usually end in consonant (стол = table). Feminine: usually end in -а/-я (книга = book). Neuter: usually end in -о/-е (окно = window). Adjectives must agree: красивый дом (beautiful house-m), красивая машина (beautiful car-f), красивое небо (beautiful sky-n)."},
	{"ru_motion_verbs", "Russian", CategoryGrammar, "Russian has paired motion verbs: one for going somewhere specific (definite), one for general motion (indefinite). идти/ходить = go on foot. ехать/ездить = go by vehicle. Я иду в школу (I'm going to school now) vs Я хожу в школу (I go to school regularly)."},
	{"ru_no_articles", "Russian", CategoryGrammar, "Russian has no articles (a, an, the). Context determines if something is specific or general. Кот спит = A cat sleeps / The cat sleeps. Word order and demonstratives help clarify: Этот кот (this cat = the cat). Какой-то кот (some cat = a cat)."},

	// Japanese
	{"ja_writing_systems", "Japanese", CategoryGrammar, "Japanese uses three writing systems. Hiragana (ひらがな): native words, grammar. Katakana (カタカナ): foreign words, emphasis. Kanji (漢字): Chinese characters for meaning. Example: 私はコーヒーを飲みます (I drink coffee) uses all three: 私/飲 (kanji), は/を/みます (hiragana), コーヒー (katakana)."},
	{"ja_particles", "Japanese", CategoryGrammar, "Japanese particles mark grammar roles. は (wa): topic marker (私は = as for me). が (ga): subject marker (犬がいる = there is a dog). を (wo): object marker (本を読む = read a book). に (ni): direction/time (学校に行く = go to school). で (de): location of action (家で食べる = eat at home)."},
	{"ja_verb_forms", "Japanese", CategoryGrammar, "Japanese verbs conjugate but don't change for person/number. Basic forms: dictionary form (食べる taberu), masu form (食べます tabemasu - polite), te form (食べて tabete - connecting), nai form (食べない tabenai - negative). Verbs come at sentence end."},
	{"ja_keigo", "Japanese", CategoryGrammar, "Keigo (敬語) is Japanese honorific language. Three levels: Teineigo (丁寧語): polite (-ます forms). Sonkeigo (尊敬語): respect for others' actions (いらっしゃる instead of いる). Kenjougo (謙譲語): humble your own actions (参る instead of 行く). Essential for business and formal situations."},
	{"ja_sentence_structure", "Japanese", CategoryGrammar, "Japanese word order is SOV (Subject-Object-Verb). English: I eat sushi. Japanese: 私は寿司を食べます (I sushi eat). Modifiers come before what they modify. The verb always comes at the end. Questions add か (ka) at the end: 食べますか？(Do you eat?)"},
	{"ja_counters", "Japanese", CategoryGrammar, "Japanese uses counters for counting different objects. 人 (nin): people (三人 = 3 people). 本 (hon): long objects (二本 = 2 pens). 匹 (hiki): small animals (四匹 = 4 cats). 枚 (mai): flat objects (五枚 = 5 papers). 個 (ko): general counter. Numbers change pronunciation with some counters."},

	// General
	{"gen_writing_systems", LanguageGeneral, CategoryGrammar, "Different writing systems: Alphabets (Latin, Cyrillic) where letters represent sounds. Syllabaries (Japanese kana) where symbols represent syllables. Logographic (Chinese) where characters represent meanings. Russian uses Cyrillic (33 letters). Japanese combines all three types."},
	{"gen_word_order", LanguageGeneral, CategoryGrammar, "Main word orders in languages: SVO (Subject-Verb-Object): English, Chinese. SOV (Subject-Object-Verb): Japanese. Russian is flexible but commonly SVO. Word order affects how you construct sentences and think in the language."},

	// Example sentences
	{"ex_en_1", "English", CategoryExample, "'I've been working here for 5 years' - Present perfect continuous. Shows an action that started in the past and continues now. Simple: I started 5 years ago and I still work here."},
	{"ex_en_2", "English", CategoryExample, "'If I had known, I would have helped' - Third conditional (past unreal). Simple: I didn't know, so I didn't help. But imagine I knew - then I would help."},
	{"ex_en_3", "English", CategoryExample, "'The report was submitted by the team' - Passive voice. The focus is on 'the report', not who did it. Active version: 'The team submitted the report.'"},
	{"ex_en_4", "English", CategoryExample, "'She came up with a great idea' - Phrasal verb 'come up with' = think of, invent. Simple: She thought of a great idea."},
	{"ex_zh_1", "Chinese", CategoryExample, "你好，你叫什么名字？(Nǐ hǎo, nǐ jiào shénme míngzi?) - Hello, what is your name? Basic greeting and introduction."},
	{"ex_zh_2", "Chinese", CategoryExample, "我想要一杯咖啡。(Wǒ xiǎng yào yī bēi kāfēi.) - I want a cup of coffee. 想要 = want, 一杯 = one cup (measure word), 咖啡 = coffee."},
	{"ex_zh_3", "Chinese", CategoryExample, "他在学校学习中文。(Tā zài xuéxiào xuéxí zhōngwén.) - He studies Chinese at school. 在 indicates location of action."},
	{"ex_zh_4", "Chinese", CategoryExample, "我把书放在桌子上了。(Wǒ bǎ shū fàng zài zhuōzi shàng le.) - I put the book on the table. 把 structure for disposal."},
	{"ex_ru_1", "Russian", CategoryExample, "Привет! Как дела? (Privet! Kak dela?) - Hi! How are you? Informal greeting among friends."},
	{"ex_ru_2", "Russian", CategoryExample, "Я хочу заказать кофе. (Ya khochu zakazat' kofe.) - I want to order coffee. хочу = I want, заказать = to order (perfective)."},
	{"ex_ru_3", "Russian", CategoryExample, "Я читаю интересную книгу. (Ya chitayu interesnuyu knigu.) - I am reading an interesting book. Accusative case for direct object."},
	{"ex_ru_4", "Russian", CategoryExample, "Я еду на работу на автобусе. (Ya yedu na rabotu na avtobuse.) - I'm going to work by bus. еду = definite motion verb (going now)."},
	{"ex_ja_1", "Japanese", CategoryExample, "はじめまして。田中です。(Hajimemashite. Tanaka desu.) - Nice to meet you. I'm Tanaka. Standard self-introduction."},
	{"ex_ja_2", "Japanese", CategoryExample, "コーヒーを一つください。(Kōhī o hitotsu kudasai.) - One coffee, please. を marks object, ください = please give me."},
	{"ex_ja_3", "Japanese", CategoryExample, "駅はどこですか？(Eki wa doko desu ka?) - Where is the station? は marks topic, か makes it a question."},
	{"ex_ja_4", "Japanese", CategoryExample, "昨日、友達と映画を見ました。(Kinō, tomodachi to eiga o mimashita.) - Yesterday, I watched a movie with a friend. と = with, を = object marker, ました = past polite."},
}

// Seed embeds and inserts the built-in reference corpus. It is idempotent:
// a non-empty store is left untouched.
func Seed(ctx context.Context, embedder *Embedder, store VectorStore) error {
	count, err := store.Count()
	if err != nil {
		return fmt.Errorf("checking vector count: %w", err)
	}
	if count > 0 {
		slog.Info("reference corpus already seeded, skipping", "count", count)
		return nil
	}

	texts := make([]string, len(seedCorpus))
	for i, d := range seedCorpus {
		texts[i] = d.text
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding seed corpus: %w", err)
	}

	now := time.Now().UTC()
	records := make([]Record, len(seedCorpus))
	for i, d := range seedCorpus {
		records[i] = Record{
			ID:        d.id,
			Text:      d.text,
			Language:  d.language,
			Category:  d.category,
			Embedding: vectors[i],
			CreatedAt: now,
		}
	}

	if err := store.Insert(records); err != nil {
		return fmt.Errorf("inserting seed corpus: %w", err)
	}

	slog.Info("seeded reference corpus", "documents", len(records))
	return nil
}
