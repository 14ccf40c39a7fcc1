package extract

// eventExtractionPrompt asks for chemical-agnostic key events for one topic.
// Format args: topic, document text, topic.
const eventExtractionPrompt = `You are a toxicology extraction engine. Extract CHEMICAL-AGNOSTIC key events from the article related to %s.

CRITICAL: Extract events AFTER metabolic transformation. Do NOT include parent chemical exposure events or metabolic transformation events. Start from the biologically active form interacting with molecular targets.

CANONICAL NAMING — use this EXACT format: '[Direction] of [Entity] in [Location]'
- Direction (choose ONE): Increased/Decreased, Activation/Inhibition, Enhanced/Reduced, Induction/Suppression, Disruption
- Entity: official nomenclature (gene/protein symbols like AhR, CYP1A1; process names like oxidative stress, apoptosis; anatomical terms)
- Location: 'in [cell type/tissue/organ]'; omit if not specific or already implied

Correct: 'Activation of aryl hydrocarbon receptor', 'Increased CYP1A1 expression in hepatocytes', 'Apoptosis of dopaminergic neurons in substantia nigra'
Incorrect: 'Hyperprolactinemia', 'Effects on liver', 'Receptor binding' (needs direction)

DESCRIPTIONS must be generic and canonical: describe the biological process, never specific chemicals, doses, species, or experimental conditions. Present tense, 1-2 sentences, omit if the name is self-explanatory.

BIOLOGICAL LEVEL (one of: molecular, cellular, tissue, organ, organism, population):
- molecular: individual molecules, genes, proteins, circulating hormone levels
- cellular : processes within or affecting whole cells (proliferation, apoptosis, oxidative stress)
- tissue   : organized cell populations (necrosis, hyperplasia, fibrosis)
- organ    : dysfunction or structural change of entire organs (weight, secretion, atrophy)
- organism : whole-body systemic effects, behavior, disease states, fertility
- population: effects on groups (decline, sex ratio)
Relationships can ONLY go from one level to the SAME or a HIGHER level, so assign levels that create a valid progression path.

EVENT TYPE:
- MIE (Molecular Initiating Event): ALWAYS molecular level, first molecular interaction, exactly ONE per pathway
- KE  (Key Event): any level, intermediate measurable changes
- AO  (Adverse Outcome): usually organism or population level, final harmful outcome, exactly ONE per pathway

Return a JSON object with exactly one key:
  "events" : array of {"name": string, "description": string, "event_type": "MIE"|"KE"|"AO", "biological_level": string, "organ": string}

Output JSON only. No explanatory text.

Article:
%s

Extract chemical-agnostic key events for %s.`

// relationshipExtractionPrompt asks for leads_to edges between the already
// extracted events. Format args: document text, events JSON.
const relationshipExtractionPrompt = `You are a causal pathway extraction engine. Identify 'leads_to' relationships between the key events below.

BIOLOGICAL LEVEL PROGRESSION RULES — MANDATORY. Level hierarchy (0 = lowest):
0. molecular, 1. cellular, 2. tissue, 3. organ, 4. organism, 5. population

Relationships can ONLY go from one level to the SAME or a HIGHER level.
FORBIDDEN: any backward transition (e.g. cellular → molecular, organism → tissue).
PREFER gradual progression through adjacent levels; only skip levels when no intermediate event exists.

Instructions:
1. Review all extracted events and their biological levels.
2. Create a causal pathway from MIE → intermediate KEs → AO.
3. Ensure EVERY relationship follows the level progression rules.

Return a JSON object with exactly one key:
  "relationships" : array of {"source_event_id": string, "target_event_id": string}
Source and target must be "id" values from the events list. Never relate an event to itself.

Output JSON only. No explanatory text.

Article:
%s

Events:
%s

Extract relationships.`

// scoreRelationshipPrompt asks for an evidence strength score for one edge.
// Format args: document text, source event JSON, target event JSON.
const scoreRelationshipPrompt = `Score evidence strength for the causal relationship (0-1).

Scoring criteria:
0.9-1.0: Strong causal evidence (dose-response, temporal sequence, mechanism explained, quantitative)
0.6-0.8: Strong association (mechanistic plausibility, consistent observations)
0.3-0.5: Suggestive evidence (correlation, limited mechanistic data)
0.0-0.2: Weak/speculative (indirect connection, hypothetical)

Consider: causal language strength ('causes' > 'associated with' > 'correlated with'), dose-response, temporal sequence, mechanistic explanation, quantitative measurements, study design quality, replication.

Return a JSON object: {"strength_score": number, "justification": string}
Output JSON only.

Article:
%s

Upstream:
%s

Downstream:
%s`
